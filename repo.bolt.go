package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/boltdb/bolt"
	"go.uber.org/zap"
)

type boltBookStorage struct {
	logger *zap.Logger
	client *bolt.DB
	config *BoltDBConfig
}

// titlesBucketName returns the name of the bucket indexing folded titles.
func titlesBucketName(config *BoltDBConfig) []byte {
	return []byte(config.BucketName + ".titles")
}

// GetBoltDBClient setup the database and the buckets then provides a ready to use client.
func GetBoltDBClient(config *Config) (*bolt.DB, error) {
	if err := os.MkdirAll(filepath.Dir(config.BoltDB.FilePath), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create the database folder, %v", err)
	}
	db, err := bolt.Open(config.BoltDB.FilePath, 0o600, &bolt.Options{Timeout: config.BoltDB.Timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open the database, %v", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{[]byte(config.BoltDB.BucketName), titlesBucketName(&config.BoltDB)} {
			if _, errB := tx.CreateBucketIfNotExists(name); errB != nil {
				return fmt.Errorf("failed to create %s bucket: %v", name, errB)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set up bucket: %v", err)
	}
	return db, nil
}

// NewBoltBookStorage provides an instance of bolt-based book storage.
func NewBoltBookStorage(logger *zap.Logger, boltConfig *BoltDBConfig, client *bolt.DB) BookStorage {
	return &boltBookStorage{
		logger: logger,
		client: client,
		config: boltConfig,
	}
}

func isbnKey(isbn int64) []byte {
	return []byte(strconv.FormatInt(isbn, 10))
}

// Save inserts or replaces a book record. The title index is checked and
// updated within the same read-write transaction.
func (bs *boltBookStorage) Save(_ context.Context, book Book) (Book, error) {
	bookBytes, err := json.Marshal(book)
	if err != nil {
		return book, err
	}
	key := isbnKey(book.ISBN)
	folded := []byte(foldCase(book.Title))
	err = bs.client.Update(func(tx *bolt.Tx) error {
		books := tx.Bucket([]byte(bs.config.BucketName))
		titles := tx.Bucket(titlesBucketName(bs.config))
		if owner := titles.Get(folded); owner != nil && !bytes.Equal(owner, key) {
			return ErrDuplicateTitle
		}
		if old := books.Get(key); old != nil {
			var oldBook Book
			if errU := json.Unmarshal(old, &oldBook); errU != nil {
				return errU
			}
			if errD := titles.Delete([]byte(foldCase(oldBook.Title))); errD != nil {
				return errD
			}
		}
		if errP := books.Put(key, bookBytes); errP != nil {
			return errP
		}
		return titles.Put(folded, key)
	})
	if err != nil {
		return Book{}, err
	}
	return book, nil
}

// FindByID retrieves a book record based on its isbn from boltdb store.
func (bs *boltBookStorage) FindByID(_ context.Context, isbn int64) (Book, error) {
	var book Book
	// initialize a readable transaction.
	tx, err := bs.client.Begin(false)
	if err != nil {
		return book, err
	}
	defer tx.Rollback()

	result := tx.Bucket([]byte(bs.config.BucketName)).Get(isbnKey(isbn))
	if result == nil {
		return book, ErrBookNotFound
	}
	err = json.Unmarshal(result, &book)
	return book, err
}

// ExistsByID reports whether a book record exists under isbn.
func (bs *boltBookStorage) ExistsByID(_ context.Context, isbn int64) (bool, error) {
	var exists bool
	err := bs.client.View(func(tx *bolt.Tx) error {
		exists = tx.Bucket([]byte(bs.config.BucketName)).Get(isbnKey(isbn)) != nil
		return nil
	})
	return exists, err
}

// DeleteByID removes a book record and its title index entry.
func (bs *boltBookStorage) DeleteByID(_ context.Context, isbn int64) error {
	key := isbnKey(isbn)
	return bs.client.Update(func(tx *bolt.Tx) error {
		books := tx.Bucket([]byte(bs.config.BucketName))
		data := books.Get(key)
		if data == nil {
			return ErrBookNotFound
		}
		var book Book
		if err := json.Unmarshal(data, &book); err != nil {
			return err
		}
		if err := tx.Bucket(titlesBucketName(bs.config)).Delete([]byte(foldCase(book.Title))); err != nil {
			return err
		}
		return books.Delete(key)
	})
}

// FindAll retrieves a list of all books stored in the bolt database.
func (bs *boltBookStorage) FindAll(_ context.Context) ([]Book, error) {
	return bs.scan(func(Book) bool { return true })
}

// FindByTitleContaining returns books whose title contains substring, ignoring case.
func (bs *boltBookStorage) FindByTitleContaining(_ context.Context, substring string) ([]Book, error) {
	return bs.scan(func(b Book) bool { return containsFold(b.Title, substring) })
}

// scan walks the books' bucket in key order and keeps the accepted books.
func (bs *boltBookStorage) scan(accept func(Book) bool) ([]Book, error) {
	tx, err := bs.client.Begin(false)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Create a cursor on the books' bucket.
	c := tx.Bucket([]byte(bs.config.BucketName)).Cursor()

	books := []Book{}
	for k, v := c.First(); k != nil; k, v = c.Next() {
		var book Book
		if err = json.Unmarshal(v, &book); err != nil {
			return nil, err
		}
		if accept(book) {
			books = append(books, book)
		}
	}
	return books, nil
}
