package circulation

import (
	"time"

	"github.com/shelfwise/shelfwise-core/internal/validate"
)

// Sentinel errors returned by circulation operations. They are validation
// errors (caller-correctable, never leave partial state) so the front end
// can branch with errors.Is and show the field-specific reason.
var (
	ErrBookNotFound   = validate.Errorf("isbn", "book does not exist")
	ErrMemberNotFound = validate.Errorf("member_id", "member does not exist")
	ErrNoCopies       = validate.Errorf("isbn", "no copies available")
	ErrNoOpenLoan     = validate.Errorf("isbn", "no unreturned loan record found")
	ErrDuplicateISBN  = validate.Errorf("isbn", "a book with this ISBN already exists")
	ErrDuplicateEmail = validate.Errorf("email", "a member with this email already exists")
)

// LoanStatus is the lifecycle state of a loan record.
type LoanStatus string

const (
	StatusIssued   LoanStatus = "issued"
	StatusReturned LoanStatus = "returned"
)

// Book is a catalogue entry. Available tracks copies currently on the
// shelf; it never exceeds Quantity and never goes below zero.
type Book struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	ISBN      string `json:"isbn"`
	Quantity  int    `json:"quantity"`
	Available int    `json:"available"`
	Category  string `json:"category,omitempty"`
}

// Member is a registered library patron.
type Member struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Phone    string    `json:"phone"`
	JoinDate time.Time `json:"join_date"`
}

// Loan is one row in the circulation ledger. ReturnDate is nil while the
// loan is open.
type Loan struct {
	ID         int64      `json:"id"`
	BookID     int64      `json:"book_id"`
	MemberID   int64      `json:"member_id"`
	IssueDate  time.Time  `json:"issue_date"`
	ReturnDate *time.Time `json:"return_date,omitempty"`
	Status     LoanStatus `json:"status"`
}

// LoanRecord is a loan joined with its book and member for display.
type LoanRecord struct {
	Loan
	BookTitle  string `json:"book_title"`
	ISBN       string `json:"isbn"`
	MemberName string `json:"member_name"`
}

// OverdueLoan describes an open loan past its due date, with the member
// contact details the notifier needs.
type OverdueLoan struct {
	LoanID      int64     `json:"loan_id"`
	BookTitle   string    `json:"book_title"`
	ISBN        string    `json:"isbn"`
	MemberName  string    `json:"member_name"`
	MemberEmail string    `json:"member_email"`
	IssueDate   time.Time `json:"issue_date"`
	DueDate     time.Time `json:"due_date"`
	DaysOverdue int       `json:"days_overdue"`
}

// CategoryCount is one row of the catalogue-by-category report.
type CategoryCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// MonthlyCount is one row of the loans-per-month report, keyed "YYYY-MM".
type MonthlyCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

// Stats is a snapshot of headline library figures.
type Stats struct {
	TotalBooks      int `json:"total_books"`
	AvailableCopies int `json:"available_copies"`
	TotalMembers    int `json:"total_members"`
	ActiveLoans     int `json:"active_loans"`
}
