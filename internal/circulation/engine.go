package circulation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shelfwise/shelfwise-core/internal/infrastructure/database"
	"github.com/shelfwise/shelfwise-core/internal/infrastructure/logging"
	"github.com/shelfwise/shelfwise-core/internal/validate"
)

// Defaults applied when Options leaves a field zero.
const (
	defaultLoanPeriodDays = 14
	defaultPageSize       = 10

	maxQuantity = 10000
)

// Options configures an Engine. Zero fields fall back to defaults.
type Options struct {
	// LoanPeriodDays is how long a member may keep a book before the loan
	// counts as overdue.
	LoanPeriodDays int

	// PageSize is the number of rows per page for search results.
	PageSize int

	// Retry governs how busy-database errors are retried on mutations.
	Retry database.RetryPolicy
}

// Engine implements circulation: catalogue management, membership,
// issuing and returning books, and reporting.
//
// Every operation, reads included, runs under the busy-retry policy.
// Mutations additionally run inside a single transaction, so concurrent
// issue/return operations on the same title serialise cleanly and no
// partial write is ever visible.
type Engine struct {
	db             *database.DB
	log            *logging.Logger
	loanPeriodDays int
	pageSize       int
	retry          database.RetryPolicy
}

// NewEngine creates a circulation engine backed by db.
func NewEngine(db *database.DB, log *logging.Logger, opts Options) *Engine {
	if opts.LoanPeriodDays <= 0 {
		opts.LoanPeriodDays = defaultLoanPeriodDays
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}

	return &Engine{
		db:             db,
		log:            log.With("component", "circulation"),
		loanPeriodDays: opts.LoanPeriodDays,
		pageSize:       opts.PageSize,
		retry:          opts.Retry,
	}
}

// LoanPeriod returns the configured loan period as a duration.
func (e *Engine) LoanPeriod() time.Duration {
	return time.Duration(e.loanPeriodDays) * 24 * time.Hour
}

// AddBook validates and inserts a catalogue entry. All copies start
// available. The ISBN is canonicalised (hyphens stripped, X uppercased)
// before storage, so lookups never depend on input formatting.
func (e *Engine) AddBook(ctx context.Context, book *Book) error {
	title, err := validate.String(book.Title, "title", validate.DefaultMinLen, validate.DefaultMaxLen)
	if err != nil {
		return err
	}
	author, err := validate.String(book.Author, "author", validate.DefaultMinLen, validate.DefaultMaxLen)
	if err != nil {
		return err
	}
	isbn, err := validate.ISBN(book.ISBN)
	if err != nil {
		return err
	}
	if err := validate.IntRange(int64(book.Quantity), "quantity", 1, maxQuantity); err != nil {
		return err
	}

	book.Title = title
	book.Author = author
	book.ISBN = isbn
	book.Category = strings.TrimSpace(book.Category)
	book.Available = book.Quantity

	err = database.WithRetry(ctx, e.retry, func(ctx context.Context) error {
		result, err := e.db.ExecContext(ctx,
			`INSERT INTO books (title, author, isbn, quantity, available, category)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			book.Title, book.Author, book.ISBN, book.Quantity, book.Available, book.Category,
		)
		if err != nil {
			return err
		}
		book.ID, _ = result.LastInsertId() //nolint:errcheck // always succeeds on SQLite
		return nil
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicateISBN
		}
		return fmt.Errorf("adding book: %w", err)
	}

	e.log.Info("book added", "title", book.Title, "isbn", book.ISBN, "quantity", book.Quantity)
	return nil
}

// BookByISBN looks up a catalogue entry by ISBN. The input is validated
// and canonicalised first; a missing book is (nil, nil), not an error.
func (e *Engine) BookByISBN(ctx context.Context, isbn string) (*Book, error) {
	canonical, err := validate.ISBN(isbn)
	if err != nil {
		return nil, err
	}

	var book *Book
	err = database.WithRetry(ctx, e.retry, func(ctx context.Context) error {
		row := e.db.QueryRowContext(ctx,
			"SELECT id, title, author, isbn, quantity, available, category FROM books WHERE isbn = ?",
			canonical,
		)

		b, err := scanBook(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		book = b
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("looking up book by ISBN: %w", err)
	}
	return book, nil
}

// SearchBooks matches query case-insensitively against title, author,
// ISBN and category. Results are paginated; page is 1-based.
func (e *Engine) SearchBooks(ctx context.Context, query string, page int) ([]Book, error) {
	if page < 1 {
		page = 1
	}
	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	offset := (page - 1) * e.pageSize

	books, err := e.queryBooks(ctx,
		`SELECT id, title, author, isbn, quantity, available, category
		 FROM books
		 WHERE LOWER(title) LIKE ? OR LOWER(author) LIKE ? OR LOWER(isbn) LIKE ? OR LOWER(category) LIKE ?
		 ORDER BY title ASC
		 LIMIT ? OFFSET ?`,
		pattern, pattern, pattern, pattern, e.pageSize, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("searching books: %w", err)
	}
	return books, nil
}

// AllBooks returns the whole catalogue ordered by title.
func (e *Engine) AllBooks(ctx context.Context) ([]Book, error) {
	books, err := e.queryBooks(ctx,
		"SELECT id, title, author, isbn, quantity, available, category FROM books ORDER BY title ASC")
	if err != nil {
		return nil, fmt.Errorf("listing books: %w", err)
	}
	return books, nil
}

// queryBooks runs a catalogue query under the retry policy and collects
// the resulting rows.
func (e *Engine) queryBooks(ctx context.Context, query string, args ...any) ([]Book, error) {
	var books []Book
	err := database.WithRetry(ctx, e.retry, func(ctx context.Context) error {
		rows, err := e.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close() //nolint:errcheck // read-only rows

		books, err = collectBooks(rows)
		return err
	})
	return books, err
}

// AddMember validates and registers a library member. JoinDate is set to
// the current time.
func (e *Engine) AddMember(ctx context.Context, member *Member) error {
	name, err := validate.String(member.Name, "name", validate.DefaultMinLen, validate.DefaultMaxLen)
	if err != nil {
		return err
	}
	if !validate.Email(member.Email) {
		return validate.Errorf("email", "invalid email address")
	}
	if !validate.Phone(member.Phone) {
		return validate.Errorf("phone", "invalid phone number")
	}

	member.Name = name
	member.JoinDate = time.Now().UTC()

	err = database.WithRetry(ctx, e.retry, func(ctx context.Context) error {
		result, err := e.db.ExecContext(ctx,
			"INSERT INTO members (name, email, phone, join_date) VALUES (?, ?, ?, ?)",
			member.Name, member.Email, member.Phone, member.JoinDate.Format(time.RFC3339),
		)
		if err != nil {
			return err
		}
		member.ID, _ = result.LastInsertId() //nolint:errcheck // always succeeds on SQLite
		return nil
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("adding member: %w", err)
	}

	e.log.Info("member registered", "name", member.Name, "member_id", member.ID)
	return nil
}

// AllMembers returns every member, newest first.
func (e *Engine) AllMembers(ctx context.Context) ([]Member, error) {
	var members []Member
	err := database.WithRetry(ctx, e.retry, func(ctx context.Context) error {
		rows, err := e.db.QueryContext(ctx,
			"SELECT id, name, email, phone, join_date FROM members ORDER BY id DESC")
		if err != nil {
			return err
		}
		defer rows.Close() //nolint:errcheck // read-only rows

		members = []Member{}
		for rows.Next() {
			var m Member
			var joined string
			if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Phone, &joined); err != nil {
				return fmt.Errorf("scanning member: %w", err)
			}
			m.JoinDate, _ = time.Parse(time.RFC3339, joined) //nolint:errcheck // format is controlled
			members = append(members, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	return members, nil
}

// IssueBook lends one copy of the book with the given ISBN to a member.
//
// The existence checks, the ledger insert and the availability decrement
// run in one transaction. The decrement is guarded (available > 0), so
// two concurrent issues of the last copy cannot both succeed even though
// both passed the read check.
func (e *Engine) IssueBook(ctx context.Context, memberID int64, isbn string) error {
	canonical, err := validate.ISBN(isbn)
	if err != nil {
		return err
	}
	if err := validate.IntRange(memberID, "member_id", 1, validate.NoBound); err != nil {
		return err
	}
	isbn = canonical

	err = database.WithRetry(ctx, e.retry, func(ctx context.Context) error {
		return e.db.WithTx(ctx, func(tx *sql.Tx) error {
			var bookID int64
			var available int
			err := tx.QueryRowContext(ctx,
				"SELECT id, available FROM books WHERE isbn = ?", isbn,
			).Scan(&bookID, &available)
			if errors.Is(err, sql.ErrNoRows) {
				return ErrBookNotFound
			}
			if err != nil {
				return fmt.Errorf("looking up book: %w", err)
			}
			if available <= 0 {
				return ErrNoCopies
			}

			var memberExists int
			err = tx.QueryRowContext(ctx,
				"SELECT 1 FROM members WHERE id = ?", memberID,
			).Scan(&memberExists)
			if errors.Is(err, sql.ErrNoRows) {
				return ErrMemberNotFound
			}
			if err != nil {
				return fmt.Errorf("looking up member: %w", err)
			}

			now := time.Now().UTC().Format(time.RFC3339)
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO transactions (book_id, member_id, issue_date, status) VALUES (?, ?, ?, ?)",
				bookID, memberID, now, string(StatusIssued),
			); err != nil {
				return fmt.Errorf("recording loan: %w", err)
			}

			result, err := tx.ExecContext(ctx,
				"UPDATE books SET available = available - 1 WHERE id = ? AND available > 0",
				bookID,
			)
			if err != nil {
				return fmt.Errorf("decrementing availability: %w", err)
			}
			rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
			if rows == 0 {
				return ErrNoCopies
			}
			return nil
		})
	})
	if err != nil {
		return err
	}

	e.log.Info("book issued", "isbn", isbn, "member_id", memberID)
	return nil
}

// ReturnBook closes the oldest open loan of the given book for a member.
//
// The ledger update and availability increment run in one transaction.
// The increment is guarded (available < quantity) so a stray return can
// never push availability above the owned quantity.
func (e *Engine) ReturnBook(ctx context.Context, memberID int64, isbn string) error {
	canonical, err := validate.ISBN(isbn)
	if err != nil {
		return err
	}
	if err := validate.IntRange(memberID, "member_id", 1, validate.NoBound); err != nil {
		return err
	}
	isbn = canonical

	err = database.WithRetry(ctx, e.retry, func(ctx context.Context) error {
		return e.db.WithTx(ctx, func(tx *sql.Tx) error {
			var bookID int64
			err := tx.QueryRowContext(ctx,
				"SELECT id FROM books WHERE isbn = ?", isbn,
			).Scan(&bookID)
			if errors.Is(err, sql.ErrNoRows) {
				return ErrBookNotFound
			}
			if err != nil {
				return fmt.Errorf("looking up book: %w", err)
			}

			var loanID int64
			err = tx.QueryRowContext(ctx,
				`SELECT id FROM transactions
				 WHERE member_id = ? AND book_id = ? AND return_date IS NULL
				 ORDER BY issue_date ASC LIMIT 1`,
				memberID, bookID,
			).Scan(&loanID)
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNoOpenLoan
			}
			if err != nil {
				return fmt.Errorf("looking up open loan: %w", err)
			}

			now := time.Now().UTC().Format(time.RFC3339)
			if _, err := tx.ExecContext(ctx,
				"UPDATE transactions SET return_date = ?, status = ? WHERE id = ?",
				now, string(StatusReturned), loanID,
			); err != nil {
				return fmt.Errorf("closing loan: %w", err)
			}

			result, err := tx.ExecContext(ctx,
				"UPDATE books SET available = available + 1 WHERE id = ? AND available < quantity",
				bookID,
			)
			if err != nil {
				return fmt.Errorf("incrementing availability: %w", err)
			}
			rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
			if rows == 0 {
				return fmt.Errorf("availability already at quantity for book %d", bookID)
			}
			return nil
		})
	})
	if err != nil {
		return err
	}

	e.log.Info("book returned", "isbn", isbn, "member_id", memberID)
	return nil
}

// OverdueLoans returns open loans whose due date has passed, with the
// contact details the notifier needs, most overdue first.
//
// This is a background/report path: a query failure is logged and yields
// an empty slice rather than an error, so a broken report can never take
// down the scan that calls it.
func (e *Engine) OverdueLoans(ctx context.Context) []OverdueLoan {
	cutoff := time.Now().UTC().Add(-e.LoanPeriod()).Format(time.RFC3339)

	overdue := []OverdueLoan{}
	err := database.WithRetry(ctx, e.retry, func(ctx context.Context) error {
		rows, err := e.db.QueryContext(ctx,
			`SELECT t.id, b.title, b.isbn, m.name, m.email, t.issue_date
			 FROM transactions t
			 JOIN books b ON t.book_id = b.id
			 JOIN members m ON t.member_id = m.id
			 WHERE t.return_date IS NULL AND t.issue_date < ?
			 ORDER BY t.issue_date ASC`,
			cutoff,
		)
		if err != nil {
			return err
		}
		defer rows.Close() //nolint:errcheck // read-only rows

		now := time.Now().UTC()
		overdue = overdue[:0]
		for rows.Next() {
			var o OverdueLoan
			var issued string
			if err := rows.Scan(&o.LoanID, &o.BookTitle, &o.ISBN, &o.MemberName, &o.MemberEmail, &issued); err != nil {
				return fmt.Errorf("scanning overdue loan: %w", err)
			}
			o.IssueDate, _ = time.Parse(time.RFC3339, issued) //nolint:errcheck // format is controlled
			o.DueDate = o.IssueDate.Add(e.LoanPeriod())
			o.DaysOverdue = int(now.Sub(o.DueDate).Hours() / 24)
			overdue = append(overdue, o)
		}
		return rows.Err()
	})
	if err != nil {
		e.log.Error("querying overdue loans", "error", err)
		return []OverdueLoan{}
	}
	return overdue
}

// Stats returns the headline library figures in one snapshot.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	err := database.WithRetry(ctx, e.retry, func(ctx context.Context) error {
		return e.db.QueryRowContext(ctx,
			`SELECT
				(SELECT COUNT(*) FROM books),
				(SELECT COALESCE(SUM(available), 0) FROM books),
				(SELECT COUNT(*) FROM members),
				(SELECT COUNT(*) FROM transactions WHERE return_date IS NULL)`,
		).Scan(&s.TotalBooks, &s.AvailableCopies, &s.TotalMembers, &s.ActiveLoans)
	})
	if err != nil {
		return nil, fmt.Errorf("collecting stats: %w", err)
	}
	return &s, nil
}

// Categories returns book counts grouped by category.
func (e *Engine) Categories(ctx context.Context) ([]CategoryCount, error) {
	var counts []CategoryCount
	err := database.WithRetry(ctx, e.retry, func(ctx context.Context) error {
		rows, err := e.db.QueryContext(ctx,
			"SELECT category, COUNT(*) FROM books GROUP BY category ORDER BY category ASC")
		if err != nil {
			return err
		}
		defer rows.Close() //nolint:errcheck // read-only rows

		counts = []CategoryCount{}
		for rows.Next() {
			var c CategoryCount
			if err := rows.Scan(&c.Name, &c.Count); err != nil {
				return fmt.Errorf("scanning category: %w", err)
			}
			counts = append(counts, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("grouping categories: %w", err)
	}
	return counts, nil
}

// BooksByCategory returns the catalogue entries in one category, ordered
// by title.
func (e *Engine) BooksByCategory(ctx context.Context, category string) ([]Book, error) {
	books, err := e.queryBooks(ctx,
		`SELECT id, title, author, isbn, quantity, available, category
		 FROM books WHERE category = ? ORDER BY title ASC`,
		category,
	)
	if err != nil {
		return nil, fmt.Errorf("listing books by category: %w", err)
	}
	return books, nil
}

// RecentLoans returns the most recently issued loans, newest first.
func (e *Engine) RecentLoans(ctx context.Context, limit int) ([]LoanRecord, error) {
	return e.recentActivity(ctx,
		"t.status = ?", "t.issue_date", string(StatusIssued), limit)
}

// RecentReturns returns the most recently returned loans, newest first.
func (e *Engine) RecentReturns(ctx context.Context, limit int) ([]LoanRecord, error) {
	return e.recentActivity(ctx,
		"t.status = ?", "t.return_date", string(StatusReturned), limit)
}

// recentActivity runs the shared recent-activity join. The ledger is a
// single table, so loans and returns are the same rows filtered by status
// and ordered by the relevant date column.
func (e *Engine) recentActivity(ctx context.Context, where, orderCol, status string, limit int) ([]LoanRecord, error) {
	if limit <= 0 {
		limit = e.pageSize
	}

	records, err := e.queryLoanRecords(ctx,
		`SELECT t.id, t.book_id, t.member_id, t.issue_date, t.return_date, t.status,
		        b.title, b.isbn, m.name
		 FROM transactions t
		 JOIN books b ON t.book_id = b.id
		 JOIN members m ON t.member_id = m.id
		 WHERE `+where+`
		 ORDER BY `+orderCol+` DESC, t.id DESC
		 LIMIT ?`,
		status, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying recent activity: %w", err)
	}
	return records, nil
}

// queryLoanRecords runs a ledger join under the retry policy and collects
// the resulting rows.
func (e *Engine) queryLoanRecords(ctx context.Context, query string, args ...any) ([]LoanRecord, error) {
	var records []LoanRecord
	err := database.WithRetry(ctx, e.retry, func(ctx context.Context) error {
		rows, err := e.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close() //nolint:errcheck // read-only rows

		records, err = collectLoanRecords(rows)
		return err
	})
	return records, err
}

// MonthlyLoans returns loan counts grouped by issue month ("YYYY-MM"),
// oldest first.
func (e *Engine) MonthlyLoans(ctx context.Context) ([]MonthlyCount, error) {
	var counts []MonthlyCount
	err := database.WithRetry(ctx, e.retry, func(ctx context.Context) error {
		rows, err := e.db.QueryContext(ctx,
			`SELECT strftime('%Y-%m', issue_date) AS month, COUNT(*)
			 FROM transactions
			 GROUP BY month
			 ORDER BY month ASC`,
		)
		if err != nil {
			return err
		}
		defer rows.Close() //nolint:errcheck // read-only rows

		counts = []MonthlyCount{}
		for rows.Next() {
			var m MonthlyCount
			if err := rows.Scan(&m.Month, &m.Count); err != nil {
				return fmt.Errorf("scanning monthly count: %w", err)
			}
			counts = append(counts, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("grouping monthly loans: %w", err)
	}
	return counts, nil
}

// BookLoanHistory returns the full loan history for a book, newest first.
func (e *Engine) BookLoanHistory(ctx context.Context, isbn string) ([]LoanRecord, error) {
	records, err := e.queryLoanRecords(ctx,
		`SELECT t.id, t.book_id, t.member_id, t.issue_date, t.return_date, t.status,
		        b.title, b.isbn, m.name
		 FROM transactions t
		 JOIN books b ON t.book_id = b.id
		 JOIN members m ON t.member_id = m.id
		 WHERE b.isbn = ?
		 ORDER BY t.issue_date DESC`,
		isbn,
	)
	if err != nil {
		return nil, fmt.Errorf("querying loan history: %w", err)
	}
	return records, nil
}

// scanner is an interface for sql.Row and sql.Rows Scan methods.
type scanner interface {
	Scan(dest ...any) error
}

func scanBook(s scanner) (*Book, error) {
	var b Book
	err := s.Scan(&b.ID, &b.Title, &b.Author, &b.ISBN, &b.Quantity, &b.Available, &b.Category)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func collectLoanRecords(rows *sql.Rows) ([]LoanRecord, error) {
	records := []LoanRecord{}
	for rows.Next() {
		var rec LoanRecord
		var issued, status string
		var returned sql.NullString
		if err := rows.Scan(&rec.ID, &rec.BookID, &rec.MemberID, &issued, &returned, &status,
			&rec.BookTitle, &rec.ISBN, &rec.MemberName); err != nil {
			return nil, fmt.Errorf("scanning loan record: %w", err)
		}
		rec.IssueDate, _ = time.Parse(time.RFC3339, issued) //nolint:errcheck // format is controlled
		rec.Status = LoanStatus(status)
		if returned.Valid {
			t, _ := time.Parse(time.RFC3339, returned.String) //nolint:errcheck // format is controlled
			rec.ReturnDate = &t
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating loan records: %w", err)
	}
	return records, nil
}

func collectBooks(rows *sql.Rows) ([]Book, error) {
	books := []Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning book: %w", err)
		}
		books = append(books, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating books: %w", err)
	}
	return books, nil
}
