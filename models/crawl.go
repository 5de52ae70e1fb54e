package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CrawlJob represents a web crawling job that feeds the chunk index with
// web-source documents.
type CrawlJob struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	URL          string             `bson:"url" json:"url"`
	Status       string             `bson:"status" json:"status"` // pending, crawling, completed, failed
	Title        string             `bson:"title,omitempty" json:"title,omitempty"`
	PagesFound   int                `bson:"pages_found" json:"pages_found"`
	PagesCrawled int                `bson:"pages_crawled" json:"pages_crawled"`
	Error        string             `bson:"error,omitempty" json:"error,omitempty"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
	CompletedAt  *time.Time         `bson:"completed_at,omitempty" json:"completed_at,omitempty"`

	// Crawling configuration
	MaxPages       int      `bson:"max_pages,omitempty" json:"max_pages,omitempty"`
	AllowedDomains []string `bson:"allowed_domains,omitempty" json:"allowed_domains,omitempty"`
	AllowedPaths   []string `bson:"allowed_paths,omitempty" json:"allowed_paths,omitempty"`
	FollowLinks    bool     `bson:"follow_links" json:"follow_links"`
	RespectRobots  bool     `bson:"respect_robots" json:"respect_robots"`
	// Recrawl schedule (cron expression); empty means one-shot
	Schedule string `bson:"schedule,omitempty" json:"schedule,omitempty"`
	// Document backing this crawl's chunks; recrawls reuse it so the chunk
	// set is replaced instead of duplicated
	DocumentID primitive.ObjectID `bson:"document_id,omitempty" json:"document_id,omitempty"`
}

// CrawledPage represents a single crawled page.
type CrawledPage struct {
	URL        string    `bson:"url" json:"url"`
	Title      string    `bson:"title" json:"title"`
	Content    string    `bson:"content" json:"content"`
	Keywords   []string  `bson:"keywords,omitempty" json:"keywords,omitempty"`
	CrawledAt  time.Time `bson:"crawled_at" json:"crawled_at"`
	StatusCode int       `bson:"status_code" json:"status_code"`
	Size       int64     `bson:"size" json:"size"`
	WordCount  int       `bson:"word_count,omitempty" json:"word_count,omitempty"`
}
