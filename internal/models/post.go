// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// Post is a blog article with its ratings and comments.
type Post struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Title   string `gorm:"size:300;not null" json:"title"`
	Content string `gorm:"type:text;not null" json:"content"`
	// AuthorID is fixed at creation.
	AuthorID uint `gorm:"not null;index" json:"author"`
	// AverageRating is the mean of Ratings[].Value, nil while there are no ratings.
	AverageRating *float64  `gorm:"index" json:"averageRating"`
	Ratings       []Rating  `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"ratings"`
	Comments      []Comment `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"comments"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Rating is one user's score for a post. There is at most one per (post, user).
type Rating struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_post_ratings_post_user" json:"-"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_post_ratings_post_user" json:"user"`
	Value     float64   `gorm:"not null" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Rating.
func (Rating) TableName() string {
	return "post_ratings"
}

// Comment is an append-only remark left on a post.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;index" json:"-"`
	UserID    uint      `gorm:"not null;index" json:"user"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Comment.
func (Comment) TableName() string {
	return "post_comments"
}

// EnsureCollections replaces nil Ratings/Comments with empty slices so they
// serialize as [] rather than null.
func (p *Post) EnsureCollections() {
	if p.Ratings == nil {
		p.Ratings = []Rating{}
	}
	if p.Comments == nil {
		p.Comments = []Comment{}
	}
}

// MeanRating returns the arithmetic mean of the post's rating values, or nil
// when the post has no ratings.
func (p *Post) MeanRating() *float64 {
	if len(p.Ratings) == 0 {
		return nil
	}
	var sum float64
	for _, r := range p.Ratings {
		sum += r.Value
	}
	mean := sum / float64(len(p.Ratings))
	return &mean
}

// PostPage is one page of a post listing. The field names follow the
// mongoose-paginate result shape that existing clients consume.
type PostPage struct {
	Docs          []*Post `json:"docs"`
	TotalDocs     int64   `json:"totalDocs"`
	Limit         int     `json:"limit"`
	Page          int     `json:"page"`
	TotalPages    int     `json:"totalPages"`
	PagingCounter int     `json:"pagingCounter"`
	HasPrevPage   bool    `json:"hasPrevPage"`
	HasNextPage   bool    `json:"hasNextPage"`
	PrevPage      *int    `json:"prevPage"`
	NextPage      *int    `json:"nextPage"`
}

// NewPostPage computes the pagination metadata for docs, the posts of the
// given page out of total matching posts.
func NewPostPage(docs []*Post, total int64, page, limit int) *PostPage {
	if docs == nil {
		docs = []*Post{}
	}
	totalPages := 1
	if limit > 0 && total > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}

	p := &PostPage{
		Docs:          docs,
		TotalDocs:     total,
		Limit:         limit,
		Page:          page,
		TotalPages:    totalPages,
		PagingCounter: (page-1)*limit + 1,
		HasPrevPage:   page > 1,
		HasNextPage:   page < totalPages,
	}
	if p.HasPrevPage {
		prev := page - 1
		p.PrevPage = &prev
	}
	if p.HasNextPage {
		next := page + 1
		p.NextPage = &next
	}
	return p
}
