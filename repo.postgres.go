package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Postgres error codes mapped onto the catalogue taxonomy.
const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
)

const booksSchema = `
CREATE TABLE IF NOT EXISTS books (
	isbn             BIGINT PRIMARY KEY,
	title            TEXT NOT NULL,
	title_key        TEXT NOT NULL,
	author           TEXT NOT NULL,
	price            NUMERIC NOT NULL,
	cover            TEXT NOT NULL DEFAULT '',
	description      TEXT NOT NULL DEFAULT '',
	publication_date TEXT NOT NULL DEFAULT '',
	genre            TEXT[] NOT NULL,
	rate             DOUBLE PRECISION NOT NULL,
	display          BOOLEAN NOT NULL DEFAULT FALSE,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS books_title_key ON books (title_key);`

const bookColumns = `isbn, title, author, price::text, cover, description, publication_date, genre, rate, display`

type postgresBookStorage struct {
	logger  *zap.Logger
	db      *pgxpool.Pool
	timeout time.Duration
}

// GetPostgresPool connects to the database, checks the connection and
// ensures the books schema exists.
func GetPostgresPool(ctx context.Context, config *Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(config.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres dsn: %w", err)
	}
	if config.Postgres.MaxConns > 0 {
		poolConfig.MaxConns = config.Postgres.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("test connection failed: %w", err)
	}
	if _, err = pool.Exec(ctx, booksSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to set up books schema: %w", err)
	}
	return pool, nil
}

// NewPostgresBookStorage provides an instance of postgres-based book storage.
func NewPostgresBookStorage(logger *zap.Logger, config *PostgresConfig, db *pgxpool.Pool) BookStorage {
	timeout := config.QueryTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &postgresBookStorage{logger: logger, db: db, timeout: timeout}
}

func (ps *postgresBookStorage) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, ps.timeout)
}

// Save upserts a book keyed by its isbn. title_key holds the case folded
// title so its unique index rejects a title owned by another record the
// same way the other backends compare titles.
func (ps *postgresBookStorage) Save(ctx context.Context, book Book) (Book, error) {
	ctx, cancel := ps.withTimeout(ctx)
	defer cancel()
	genre := book.Genre
	if genre == nil {
		genre = []string{}
	}
	_, err := ps.db.Exec(ctx, `
		INSERT INTO books (isbn, title, title_key, author, price, cover, description, publication_date, genre, rate, display)
		VALUES ($1, $2, $3, $4, $5::text::numeric, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (isbn) DO UPDATE SET
			title = EXCLUDED.title,
			title_key = EXCLUDED.title_key,
			author = EXCLUDED.author,
			price = EXCLUDED.price,
			cover = EXCLUDED.cover,
			description = EXCLUDED.description,
			publication_date = EXCLUDED.publication_date,
			genre = EXCLUDED.genre,
			rate = EXCLUDED.rate,
			display = EXCLUDED.display,
			updated_at = now()`,
		book.ISBN, book.Title, foldCase(book.Title), book.Author, book.Price.String(), book.Cover, book.Description,
		book.PublicationDate, genre, book.Rate, book.Display,
	)
	if err != nil {
		return Book{}, ps.mapError(err, book.ISBN)
	}
	return book, nil
}

// FindByID retrieves a book record based on its isbn.
func (ps *postgresBookStorage) FindByID(ctx context.Context, isbn int64) (Book, error) {
	ctx, cancel := ps.withTimeout(ctx)
	defer cancel()
	row := ps.db.QueryRow(ctx, `SELECT `+bookColumns+` FROM books WHERE isbn = $1`, isbn)
	book, err := scanBook(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Book{}, ErrBookNotFound
	}
	return book, err
}

// ExistsByID reports whether a book record exists under isbn.
func (ps *postgresBookStorage) ExistsByID(ctx context.Context, isbn int64) (bool, error) {
	ctx, cancel := ps.withTimeout(ctx)
	defer cancel()
	var exists bool
	err := ps.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM books WHERE isbn = $1)`, isbn).Scan(&exists)
	return exists, err
}

// DeleteByID removes a book record based on its isbn.
func (ps *postgresBookStorage) DeleteByID(ctx context.Context, isbn int64) error {
	ctx, cancel := ps.withTimeout(ctx)
	defer cancel()
	tag, err := ps.db.Exec(ctx, `DELETE FROM books WHERE isbn = $1`, isbn)
	if err != nil {
		return ps.mapError(err, isbn)
	}
	if tag.RowsAffected() == 0 {
		return ErrBookNotFound
	}
	return nil
}

// FindAll retrieves every book in insertion order.
func (ps *postgresBookStorage) FindAll(ctx context.Context) ([]Book, error) {
	return ps.query(ctx, `SELECT `+bookColumns+` FROM books ORDER BY created_at, isbn`)
}

// FindByTitleContaining returns books whose folded title contains the folded substring.
func (ps *postgresBookStorage) FindByTitleContaining(ctx context.Context, substring string) ([]Book, error) {
	return ps.query(ctx, `SELECT `+bookColumns+` FROM books WHERE strpos(title_key, $1) > 0 ORDER BY created_at, isbn`, foldCase(substring))
}

func (ps *postgresBookStorage) query(ctx context.Context, sql string, args ...any) ([]Book, error) {
	ctx, cancel := ps.withTimeout(ctx)
	defer cancel()
	rows, err := ps.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	books := []Book{}
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	return books, rows.Err()
}

func scanBook(row pgx.Row) (Book, error) {
	var book Book
	var price string
	err := row.Scan(&book.ISBN, &book.Title, &book.Author, &price, &book.Cover, &book.Description,
		&book.PublicationDate, &book.Genre, &book.Rate, &book.Display)
	if err != nil {
		return Book{}, err
	}
	if book.Price, err = decimal.NewFromString(price); err != nil {
		return Book{}, fmt.Errorf("invalid stored price %q: %w", price, err)
	}
	return book, nil
}

// mapError converts constraint and serialization failures into catalogue errors.
func (ps *postgresBookStorage) mapError(err error, isbn int64) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		return fmt.Errorf("%w: %s", ErrDuplicateTitle, pgErr.ConstraintName)
	case pgSerializationFailure:
		return &ConflictError{ISBN: isbn, Reason: pgErr.Message}
	}
	return err
}
