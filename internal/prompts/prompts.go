package prompts

import (
	"bytes"
	"embed"
	"text/template"
)

//go:embed templates/*
var templatesFS embed.FS

// Finding is one retrieval agent's contribution, as shown to the verifier
// and summary prompts.
type Finding struct {
	Agent   string
	Summary string
}

func render(name string, data any) (string, error) {
	content, err := templatesFS.ReadFile("templates/" + name)
	if err != nil {
		return "", err
	}

	tmpl, err := template.New(name).Parse(string(content))
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderPair(systemName, userName string, data any) (systemPrompt, userPrompt string, err error) {
	systemPrompt, err = render(systemName, data)
	if err != nil {
		return "", "", err
	}
	userPrompt, err = render(userName, data)
	if err != nil {
		return "", "", err
	}
	return systemPrompt, userPrompt, nil
}

// RenderPlannerPrompt builds the agent-selection prompts for a user query.
func RenderPlannerPrompt(query string) (systemPrompt, userPrompt string, err error) {
	data := struct{ Query string }{Query: query}
	return renderPair("planner_system.md", "planner_user.md", data)
}

// RenderVerifierPrompt builds the verification prompts over the retrieved
// findings.
func RenderVerifierPrompt(query string, findings []Finding) (systemPrompt, userPrompt string, err error) {
	data := struct {
		Query    string
		Findings []Finding
	}{Query: query, Findings: findings}
	return renderPair("verifier_system.md", "verifier_user.md", data)
}

// RenderSummaryPrompt builds the final-answer prompts.
func RenderSummaryPrompt(query string, findings []Finding) (systemPrompt, userPrompt string, err error) {
	data := struct {
		Query    string
		Findings []Finding
	}{Query: query, Findings: findings}
	return renderPair("summary_system.md", "summary_user.md", data)
}

// RenderPageSummaryPrompt builds the prompts used to condense fetched web
// page text into a query-focused summary.
func RenderPageSummaryPrompt(query, title, url, pageText string) (systemPrompt, userPrompt string, err error) {
	data := struct {
		Query    string
		Title    string
		URL      string
		PageText string
	}{Query: query, Title: title, URL: url, PageText: pageText}
	return renderPair("page_summary_system.md", "page_summary_user.md", data)
}
