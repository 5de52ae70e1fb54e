package agents

import (
	"reflect"
	"testing"
)

const registryYAML = `
agents:
  - name: DocumentRetrievalAgent
    kind: documents
    description: internal documents
    enabled: true
  - name: DatasetRetrievalAgent
    kind: datasets
    description: spreadsheet rows
    enabled: true
  - name: WebRetrievalAgent
    kind: web
    description: web search
    enabled: false
`

func TestParseRegistry(t *testing.T) {
	r, err := ParseRegistry([]byte(registryYAML))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	enabled := r.Enabled()
	want := []string{"DocumentRetrievalAgent", "DatasetRetrievalAgent"}
	if !reflect.DeepEqual(enabled, want) {
		t.Errorf("Enabled() = %v, want %v", enabled, want)
	}

	if r.IsEnabled("WebRetrievalAgent") {
		t.Error("WebRetrievalAgent should be disabled")
	}
	if !r.IsEnabled("DocumentRetrievalAgent") {
		t.Error("DocumentRetrievalAgent should be enabled")
	}

	spec, ok := r.Spec("DatasetRetrievalAgent")
	if !ok || spec.Kind != "datasets" {
		t.Errorf("Spec() = %+v, ok=%v", spec, ok)
	}
}

func TestParseRegistryFilter(t *testing.T) {
	r, err := ParseRegistry([]byte(registryYAML))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	selected, dropped := r.Filter([]string{
		"DocumentRetrievalAgent",
		"WebRetrievalAgent", // disabled
		"MadeUpAgent",       // unknown
	})

	if !reflect.DeepEqual(selected, []string{"DocumentRetrievalAgent"}) {
		t.Errorf("selected = %v", selected)
	}
	if len(dropped) != 2 {
		t.Errorf("dropped = %v, want 2 entries", dropped)
	}
}

func TestParseRegistryEmpty(t *testing.T) {
	if _, err := ParseRegistry([]byte("agents: []")); err == nil {
		t.Fatal("expected an error for an empty agent store")
	}
}

func TestParseRegistryDuplicate(t *testing.T) {
	data := `
agents:
  - name: DocumentRetrievalAgent
    enabled: true
  - name: DocumentRetrievalAgent
    enabled: true
`
	if _, err := ParseRegistry([]byte(data)); err == nil {
		t.Fatal("expected an error for duplicate agent names")
	}
}

func TestParseRegistryMissingName(t *testing.T) {
	data := `
agents:
  - kind: documents
    enabled: true
`
	if _, err := ParseRegistry([]byte(data)); err == nil {
		t.Fatal("expected an error for a nameless agent")
	}
}
