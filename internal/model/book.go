package model

// Book is a book a user planted in a garden.  Only the columns consumed by
// account deletion are modelled here; catalog lookup lives behind an
// external API boundary.
type Book struct {
	ID        uint64 // books.id
	GardenID  uint64 // books.garden_id (0 = personal shelf)
	UserID    uint64 // books.user_id
	ISBN      string // books.isbn
	Title     string // books.title
	Author    string // books.author
	Publisher string // books.publisher
	Status    int    // books.status (reading state)
	Page      int    // books.page
}

// BookImage is an uploaded cover image attached to a book.  ImageURL is the
// file name under the local images directory; removal on cascade delete is
// best-effort.
type BookImage struct {
	ID       uint64 // book_images.id
	BookID   uint64 // book_images.book_id
	ImageURL string // book_images.image_url
}
