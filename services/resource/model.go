package resource

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// PromoResource is a downloadable marketing asset (banner pack, logo
// sheet, media kit). The object itself lives in the bucket; rows here
// are metadata only.
type PromoResource struct {
	ID          snowflake.ID `gorm:"column:id;primaryKey;autoIncrement:false" json:"id"`
	Code        string       `gorm:"column:code;uniqueIndex;not null" json:"code"`
	Title       string       `gorm:"column:title;not null" json:"title"`
	Category    string       `gorm:"column:category;index" json:"category"`
	ObjectKey   string       `gorm:"column:object_key;not null" json:"-"`
	ContentType string       `gorm:"column:content_type" json:"content_type"`
	SizeBytes   int64        `gorm:"column:size_bytes" json:"size_bytes"`
	CreatedAt   time.Time    `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (PromoResource) TableName() string {
	return "promo_resources"
}

// HelpArticle is a published support page, addressed by slug.
type HelpArticle struct {
	ID        snowflake.ID `gorm:"column:id;primaryKey;autoIncrement:false" json:"id"`
	Slug      string       `gorm:"column:slug;uniqueIndex;not null" json:"slug"`
	Title     string       `gorm:"column:title;not null" json:"title"`
	Body      string       `gorm:"column:body;type:text" json:"body"`
	Published bool         `gorm:"column:published;index" json:"published"`
	CreatedAt time.Time    `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time    `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (HelpArticle) TableName() string {
	return "help_articles"
}
