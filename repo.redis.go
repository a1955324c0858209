package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis keys of the books hash and of the folded titles index.
const (
	HBooks  string = "books"
	HTitles string = "books:titles"
)

// redisMaxTxRetries bounds optimistic transaction retries before a conflict is reported.
const redisMaxTxRetries = 3

type redisBookStorage struct {
	logger *zap.Logger
	client *redis.Client
}

// NewRedisBookStorage provides an instance of redis-based book storage.
func NewRedisBookStorage(logger *zap.Logger, client *redis.Client) BookStorage {
	return &redisBookStorage{
		logger: logger,
		client: client,
	}
}

// GetRedisClient provides a ready to use redis client.
func GetRedisClient(config *Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", config.Redis.Host, config.Redis.Port),
		DialTimeout:  config.Redis.DialTimeout,
		ReadTimeout:  config.Redis.ReadTimeout,
		WriteTimeout: config.Redis.WriteTimeout,
		PoolSize:     config.Redis.PoolSize,
		PoolTimeout:  config.Redis.PoolTimeout,
		Password:     config.Redis.Password,
		Username:     config.Redis.Username,
		DB:           config.Redis.DatabaseIndex,
	})

	// test connection.
	if pong, err := client.Ping(context.Background()).Result(); pong != "PONG" || err != nil {
		return client, fmt.Errorf("test connection failed: %v", err)
	}
	return client, nil
}

// Save inserts or replaces a book record. Books and titles keys are watched
// so a concurrent writer aborts the transaction, which is retried a few times.
func (rs *redisBookStorage) Save(ctx context.Context, book Book) (Book, error) {
	bookBytes, err := json.Marshal(book)
	if err != nil {
		return book, err
	}
	key := strconv.FormatInt(book.ISBN, 10)
	folded := foldCase(book.Title)

	txf := func(tx *redis.Tx) error {
		owner, err := tx.HGet(ctx, HTitles, folded).Result()
		if err != nil && err != redis.Nil {
			return err
		}
		if err == nil && owner != key {
			return ErrDuplicateTitle
		}
		previous, err := rs.titleOf(ctx, tx, key)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if previous != "" && previous != folded {
				pipe.HDel(ctx, HTitles, previous)
			}
			pipe.HSet(ctx, HBooks, key, bookBytes)
			pipe.HSet(ctx, HTitles, folded, key)
			return nil
		})
		return err
	}

	if err = rs.watch(ctx, txf, book.ISBN); err != nil {
		return Book{}, err
	}
	return book, nil
}

// FindByID retrieves a book record based on its isbn.
func (rs *redisBookStorage) FindByID(ctx context.Context, isbn int64) (Book, error) {
	var book Book
	bookJSONString, err := rs.client.HGet(ctx, HBooks, strconv.FormatInt(isbn, 10)).Result()
	if err == redis.Nil {
		return book, ErrBookNotFound
	}
	if err != nil {
		return book, err
	}
	err = json.Unmarshal([]byte(bookJSONString), &book)
	return book, err
}

// ExistsByID reports whether a book record exists under isbn.
func (rs *redisBookStorage) ExistsByID(ctx context.Context, isbn int64) (bool, error) {
	return rs.client.HExists(ctx, HBooks, strconv.FormatInt(isbn, 10)).Result()
}

// DeleteByID removes a book record and its title index entry.
func (rs *redisBookStorage) DeleteByID(ctx context.Context, isbn int64) error {
	key := strconv.FormatInt(isbn, 10)
	txf := func(tx *redis.Tx) error {
		title, err := rs.titleOf(ctx, tx, key)
		if err != nil {
			return err
		}
		if title == "" {
			return ErrBookNotFound
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HDel(ctx, HBooks, key)
			pipe.HDel(ctx, HTitles, title)
			return nil
		})
		return err
	}
	return rs.watch(ctx, txf, isbn)
}

// FindAll retrieves a list of all books stored in the redis database ordered by isbn.
func (rs *redisBookStorage) FindAll(ctx context.Context) ([]Book, error) {
	mapBooks, err := rs.client.HVals(ctx, HBooks).Result()
	if err != nil {
		return nil, err
	}
	books := []Book{}
	for _, bookJSONString := range mapBooks {
		var book Book
		if err = json.Unmarshal([]byte(bookJSONString), &book); err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	sort.Slice(books, func(i, j int) bool { return books[i].ISBN < books[j].ISBN })
	return books, nil
}

// FindByTitleContaining returns books whose title contains substring, ignoring case.
func (rs *redisBookStorage) FindByTitleContaining(ctx context.Context, substring string) ([]Book, error) {
	books, err := rs.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	matches := []Book{}
	for _, b := range books {
		if containsFold(b.Title, substring) {
			matches = append(matches, b)
		}
	}
	return matches, nil
}

// titleOf returns the folded title of the book stored under key or
// an empty string when there is none.
func (rs *redisBookStorage) titleOf(ctx context.Context, tx *redis.Tx, key string) (string, error) {
	data, err := tx.HGet(ctx, HBooks, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	var book Book
	if err = json.Unmarshal([]byte(data), &book); err != nil {
		return "", err
	}
	return foldCase(book.Title), nil
}

// watch runs txf as an optimistic transaction over the books keys.
func (rs *redisBookStorage) watch(ctx context.Context, txf func(*redis.Tx) error, isbn int64) error {
	for i := 0; i < redisMaxTxRetries; i++ {
		err := rs.client.Watch(ctx, txf, HBooks, HTitles)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		rs.logger.Warn("redis: transaction aborted by a concurrent write", zap.Int64("book.isbn", isbn), zap.Int("attempt", i+1))
	}
	return &ConflictError{ISBN: isbn, Reason: "concurrent write detected"}
}
