package models

// Book is one title with a pool of physical copies. AvailableCopies is the
// single source of truth for availability; "issued" is derived from it, not
// stored. IssuedBy tracks the most recent borrower only, per-copy loans are
// not modeled.
type Book struct {
	ID              int     `gorm:"primaryKey;autoIncrement"      json:"id"`
	Title           string  `gorm:"not null"                      json:"title"`
	Author          string  `gorm:"not null"                      json:"author"`
	Category        string  `json:"category"`
	Year            int     `json:"year"`
	Description     string  `json:"description"`
	TotalCopies     int     `gorm:"not null;default:1"            json:"totalCopies"`
	AvailableCopies int     `gorm:"not null"                      json:"availableCopies"`
	IssuedBy        *string `json:"issuedBy"`
	DueDate         *string `json:"dueDate"`
	ReturnStatus    string  `gorm:"not null;default:'Not Returned'" json:"returnStatus"`
}

func (b *Book) Issued() bool {
	return b.AvailableCopies < b.TotalCopies
}

type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string `gorm:"unique;not null"          json:"username"`
	PasswordHash string `gorm:"not null"                 json:"-"`
	Role         string `gorm:"not null;default:user"    json:"role"`
}
