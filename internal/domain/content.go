// Package domain contains core domain types for the Atelier site.
package domain

import (
	"time"
)

// Post is a bilingual blog post as stored in the content store.
type Post struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	TitleEN     string    `json:"title_en"`
	TitleAR     string    `json:"title_ar"`
	ExcerptEN   string    `json:"excerpt_en"`
	ExcerptAR   string    `json:"excerpt_ar"`
	BodyEN      string    `json:"body_en"`
	BodyAR      string    `json:"body_ar"`
	CategoryEN  string    `json:"category_en"`
	CategoryAR  string    `json:"category_ar"`
	ImageURL    string    `json:"image_url"`
	Featured    bool      `json:"featured"`
	PublishedAt time.Time `json:"published_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Product is a bilingual catalog entry as stored in the content store.
type Product struct {
	ID            string    `json:"id"`
	Slug          string    `json:"slug"`
	TitleEN       string    `json:"title_en"`
	TitleAR       string    `json:"title_ar"`
	DescriptionEN string    `json:"description_en"`
	DescriptionAR string    `json:"description_ar"`
	CategoryEN    string    `json:"category_en"`
	CategoryAR    string    `json:"category_ar"`
	ImageURL      string    `json:"image_url"`
	Gallery       []string  `json:"gallery"`
	Featured      bool      `json:"featured"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// LocalizedPost is a post projected onto one language.
type LocalizedPost struct {
	Slug        string
	Title       string
	Excerpt     string
	Body        string
	Category    string
	ImageURL    string
	Featured    bool
	PublishedAt time.Time
}

// LocalizedProduct is a product projected onto one language.
type LocalizedProduct struct {
	Slug        string
	Title       string
	Description string
	Category    string
	ImageURL    string
	Gallery     []string
	Featured    bool
}

// Localized picks the fields for lang ("ar" or anything else for English).
// Empty Arabic fields fall back to the English text.
func (p *Post) Localized(lang string) LocalizedPost {
	lp := LocalizedPost{
		Slug:        p.Slug,
		Title:       p.TitleEN,
		Excerpt:     p.ExcerptEN,
		Body:        p.BodyEN,
		Category:    p.CategoryEN,
		ImageURL:    p.ImageURL,
		Featured:    p.Featured,
		PublishedAt: p.PublishedAt,
	}
	if lang == "ar" {
		lp.Title = pick(p.TitleAR, p.TitleEN)
		lp.Excerpt = pick(p.ExcerptAR, p.ExcerptEN)
		lp.Body = pick(p.BodyAR, p.BodyEN)
		lp.Category = pick(p.CategoryAR, p.CategoryEN)
	}
	return lp
}

// Localized picks the fields for lang ("ar" or anything else for English).
func (p *Product) Localized(lang string) LocalizedProduct {
	lp := LocalizedProduct{
		Slug:        p.Slug,
		Title:       p.TitleEN,
		Description: p.DescriptionEN,
		Category:    p.CategoryEN,
		ImageURL:    p.ImageURL,
		Gallery:     p.Gallery,
		Featured:    p.Featured,
	}
	if lang == "ar" {
		lp.Title = pick(p.TitleAR, p.TitleEN)
		lp.Description = pick(p.DescriptionAR, p.DescriptionEN)
		lp.Category = pick(p.CategoryAR, p.CategoryEN)
	}
	return lp
}

func pick(preferred, fallback string) string {
	if preferred != "" {
		return preferred
	}
	return fallback
}
