package db

import (
	"encoding/json"
	"time"
)

// Embedding status values for news.articles.
const (
	EmbeddingPending  = "pending"
	EmbeddingComplete = "complete"
	EmbeddingFailed   = "failed"
)

// Article maps news.articles. The url uniquely identifies an article for
// upsert purposes; source_list always includes the article's own source and
// occurrence_count mirrors its length.
type Article struct {
	ArticleID           int64           `gorm:"column:article_id;primaryKey;autoIncrement"`
	URL                 string          `gorm:"column:url;type:text;not null;unique"`
	Title               string          `gorm:"column:title;type:text;not null"`
	Source              string          `gorm:"column:source;type:text;not null"`
	PublishedAt         *time.Time      `gorm:"column:published_at;type:timestamptz"`
	Content             string          `gorm:"column:content;type:text;not null;default:''"`
	Summary             string          `gorm:"column:summary;type:text;not null;default:''"`
	Author              *string         `gorm:"column:author;type:text"`
	ImageURL            *string         `gorm:"column:image_url;type:text"`
	Keywords            json.RawMessage `gorm:"column:keywords;type:jsonb"`
	Language            string          `gorm:"column:language;type:text;not null;default:''"`
	Category            string          `gorm:"column:category;type:text;not null"`
	Confidence          float64         `gorm:"column:confidence;type:double precision;not null;default:0"`
	Embedding           *string         `gorm:"column:embedding;type:vector(1024)"`
	EmbeddingStatus     string          `gorm:"column:embedding_status;type:text;not null;default:pending"`
	EmbeddingRetryCount int             `gorm:"column:embedding_retry_count;type:integer;not null;default:0"`
	EmbeddingError      *string         `gorm:"column:embedding_error;type:text"`
	SourceList          json.RawMessage `gorm:"column:source_list;type:jsonb;not null"`
	OccurrenceCount     int             `gorm:"column:occurrence_count;type:integer;not null;default:1"`
	Highlight           bool            `gorm:"column:highlight;type:boolean;not null;default:false"`
	CreatedAt           time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt           time.Time       `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Article) TableName() string { return "news.articles" }

func autoMigrateModels() []any {
	return []any{
		&Article{},
	}
}
