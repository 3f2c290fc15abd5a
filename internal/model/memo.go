package model

import "time"

// Memo is a reading note attached to a book.
type Memo struct {
	ID        uint64    // memos.id
	BookID    uint64    // memos.book_id
	UserID    uint64    // memos.user_id
	Content   string    // memos.content
	Quote     string    // memos.quote
	Liked     bool      // memos.liked
	CreatedAt time.Time // memos.created_at
}

// MemoImage is an uploaded image attached to a memo.
type MemoImage struct {
	ID       uint64 // memo_images.id
	MemoID   uint64 // memo_images.memo_id
	ImageURL string // memo_images.image_url
}
