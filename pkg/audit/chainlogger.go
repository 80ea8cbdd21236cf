// Package audit keeps a tamper-evident, hash-chained trail of API access records.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// LogEntry is one link of the chain. Hash covers Seq, Timestamp, PreviousHash and Payload.
type LogEntry struct {
	Seq          uint64 `json:"seq"`
	Timestamp    string `json:"timestamp"`
	PreviousHash string `json:"previousHash"`
	Payload      string `json:"payload"`
	Hash         string `json:"hash"`
}

var genesisHash = strings.Repeat("0", 64)

// ChainLogger appends entries to a hash chain, keeps the most recent ones in memory and hands
// every entry to an optional sink.
type ChainLogger struct {
	mu           sync.Mutex
	previousHash string
	seq          uint64
	retain       int
	recent       []*LogEntry
	sink         func(*LogEntry)
	now          func() time.Time
}

type Option func(*ChainLogger)

// WithRetention keeps the last n entries for Recent. Zero disables retention.
func WithRetention(n int) Option {
	return func(c *ChainLogger) { c.retain = n }
}

// WithSink is called with every appended entry while the chain lock is held.
func WithSink(fn func(*LogEntry)) Option {
	return func(c *ChainLogger) { c.sink = fn }
}

func NewChainLogger(opts ...Option) *ChainLogger {
	c := &ChainLogger{
		previousHash: genesisHash,
		retain:       1000,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Append adds a new entry linked to the previous one.
func (c *ChainLogger) Append(payload string) *LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	entry := &LogEntry{
		Seq:          c.seq,
		Timestamp:    c.now().UTC().Format(time.RFC3339Nano),
		PreviousHash: c.previousHash,
		Payload:      payload,
	}
	entry.Hash = entryHash(entry)
	c.previousHash = entry.Hash

	if c.retain > 0 {
		c.recent = append(c.recent, entry)
		if over := len(c.recent) - c.retain; over > 0 {
			c.recent = append(c.recent[:0:0], c.recent[over:]...)
		}
	}
	if c.sink != nil {
		c.sink(entry)
	}
	return entry
}

// Recent returns copies of the retained entries, oldest first.
func (c *ChainLogger) Recent() []*LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*LogEntry, len(c.recent))
	for i, e := range c.recent {
		cp := *e
		out[i] = &cp
	}
	return out
}

func entryHash(e *LogEntry) string {
	input := strings.Join([]string{strconv.FormatUint(e.Seq, 10), e.PreviousHash, e.Timestamp, e.Payload}, "|")
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// VerifyChain checks that entries form an unbroken chain. The first entry may start anywhere;
// it is trusted for its PreviousHash only.
func VerifyChain(entries []*LogEntry) error {
	for i, entry := range entries {
		if i > 0 {
			prev := entries[i-1]
			if entry.PreviousHash != prev.Hash {
				return fmt.Errorf("entry %d: previous hash does not match entry %d", entry.Seq, prev.Seq)
			}
			if entry.Seq != prev.Seq+1 {
				return fmt.Errorf("entry %d: sequence gap after %d", entry.Seq, prev.Seq)
			}
		}
		if entryHash(entry) != entry.Hash {
			return fmt.Errorf("entry %d: hash mismatch", entry.Seq)
		}
	}
	return nil
}
