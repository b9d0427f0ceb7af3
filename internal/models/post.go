package models

import (
	"io"
	"time"
)

// Post represents a blog post
type Post struct {
	ID         int       `json:"id"`
	Title      string    `json:"title"`
	Body       string    `json:"text"`
	Category   string    `json:"category"`
	CoverImage string    `json:"coverImage,omitempty"`
	UserID     int       `json:"userId"`
	Tags       []string  `json:"tags"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Tag represents a tag that posts can be associated with
type Tag struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// PostRequest represents the multipart form for creating and updating posts
type PostRequest struct {
	Title    string   `form:"title" validate:"required,notblank,max=30"`
	Body     string   `form:"text" validate:"required,notblank"`
	Category string   `form:"category" validate:"required,notblank"`
	Tags     []string `form:"tags" validate:"dive,max=50"`
}

// Upload is an uploaded file passed from the HTTP boundary to the services
type Upload struct {
	Filename string
	Content  io.ReadSeeker
}
