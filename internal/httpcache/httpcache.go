// Package httpcache is a small read-through cache for GET responses, used to
// soften repeated polling of the provider during development and tests.
package httpcache

import (
	"bytes"
	"crypto/sha1"
	"encoding/gob"
	"encoding/hex"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.etcd.io/bbolt"
)

type entry struct {
	UpdatedAt  time.Time
	URL        string
	Status     string
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (e *entry) makeResponse(req *http.Request) *http.Response {
	return &http.Response{
		Status:        e.Status,
		StatusCode:    e.StatusCode,
		Header:        e.Header,
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
		Request:       req,
	}
}

type Storage interface {
	Fetch(u *url.URL) (*entry, error)
	Save(u *url.URL, res *http.Response) (*entry, error)
}

var bucketName = []byte("cache")

type BBoltStorage struct {
	db *bbolt.DB
}

func NewBBoltStorage(db *bbolt.DB) *BBoltStorage {
	return &BBoltStorage{db: db}
}

func cacheKey(u *url.URL) []byte {
	h := sha1.Sum([]byte(u.String()))
	return []byte(u.Host + "/" + hex.EncodeToString(h[:]))
}

func (s *BBoltStorage) Fetch(u *url.URL) (*entry, error) {
	var d []byte

	if err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return nil
		}

		if v := b.Get(cacheKey(u)); v != nil {
			d = append([]byte(nil), v...)
		}

		return nil
	}); err != nil {
		return nil, err
	}

	if d == nil {
		return nil, nil
	}

	var e entry
	if err := gob.NewDecoder(bytes.NewReader(d)).Decode(&e); err != nil {
		return nil, err
	}

	return &e, nil
}

func (s *BBoltStorage) Save(u *url.URL, res *http.Response) (*entry, error) {
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	e := entry{
		UpdatedAt:  time.Now(),
		URL:        u.String(),
		Status:     res.Status,
		StatusCode: res.StatusCode,
		Header:     res.Header,
		Body:       body,
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}

	if err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return err
		}

		return b.Put(cacheKey(u), buf.Bytes())
	}); err != nil {
		return nil, err
	}

	return &e, nil
}

type Transport struct {
	transport http.RoundTripper
	storage   Storage
	maxAge    time.Duration
}

func NewTransport(transport http.RoundTripper, storage Storage, maxAge time.Duration) *Transport {
	if transport == nil {
		transport = http.DefaultTransport
	}

	if maxAge == 0 {
		maxAge = time.Hour * 24
	}

	return &Transport{
		transport: transport,
		storage:   storage,
		maxAge:    maxAge,
	}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet {
		return t.transport.RoundTrip(req)
	}

	if e, err := t.storage.Fetch(req.URL); err == nil && e != nil && time.Since(e.UpdatedAt) < t.maxAge {
		return e.makeResponse(req), nil
	}

	res, err := t.transport.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if res.StatusCode != http.StatusOK {
		return res, nil
	}

	e, err := t.storage.Save(req.URL, res)
	if err != nil {
		return nil, err
	}

	return e.makeResponse(req), nil
}
