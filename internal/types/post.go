package types

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
)

const MaxTitleLength = 255

type Post struct {
	ID        int64     `json:"id" example:"1"`
	Title     string    `json:"title" example:"Judul Postingan"`
	Content   *string   `json:"content" example:"Isi konten postingan"`
	ImageURL  *string   `json:"imageUrl" example:"9b2f8c1e-0d6a-4e59-8f7e-3b1c2a4d5e6f.webp"`
	UserID    int64     `json:"userId" example:"1"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PostAuthor is the slice of the author exposed alongside a listed post.
type PostAuthor struct {
	Email string `json:"email" example:"a@b.com"`
}

type PostWithAuthor struct {
	Post
	User PostAuthor `json:"user"`
}

// CreatePostParams carries the text fields of a new post.
type CreatePostParams struct {
	Title   string  `json:"title" example:"Judul Postingan"`
	Content *string `json:"content,omitempty" example:"Isi konten postingan"`
}

func (p CreatePostParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Title, validation.Required, validation.RuneLength(1, MaxTitleLength)),
	)
}

// UpdatePostParams uses pointers so unset fields are left unchanged.
type UpdatePostParams struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
}

// Validate rejects an explicitly provided but empty title.
func (p UpdatePostParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Title, validation.NilOrNotEmpty, validation.RuneLength(1, MaxTitleLength)),
	)
}

// IsEmpty reports whether no text field was provided.
func (p UpdatePostParams) IsEmpty() bool {
	return p.Title == nil && p.Content == nil
}

// Response is a simple message body.
type Response struct {
	Message string `json:"message" example:"Post deleted"`
}

// ErrorEnvelope is the uniform error body.
type ErrorEnvelope struct {
	StatusCode int    `json:"statusCode" example:"403"`
	Message    string `json:"message" example:"Invalid credentials"`
	Error      string `json:"error" example:"Forbidden"`
	Path       string `json:"path" example:"/auth/signin"`
	Timestamp  string `json:"timestamp" example:"2025-01-01T00:00:00.000Z"`
}
