package annotate

import (
	"fmt"
	"io"

	farm "github.com/dgryski/go-farm"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/porec/concatemer"
)

// RecordSource yields alignment records. Read returns io.EOF after the last
// record. sam.Reader and bam.Reader implement it.
type RecordSource interface {
	Read() (*sam.Record, error)
}

// RecordSink consumes annotated records. sam.Writer and bam.Writer implement
// it.
type RecordSink interface {
	Write(r *sam.Record) error
}

// Group holds the records of one concatemer, in input order.
type Group struct {
	Parent  string
	Records []*sam.Record
}

// ParentKey returns the concatemer id that r is grouped under: the parent
// part of its monomer id, or the whole read name if it is not a monomer id.
func ParentKey(r *sam.Record) string {
	parent, _, err := concatemer.ParseMonomerID(r.Name)
	if err != nil {
		return r.Name
	}
	return parent
}

func fingerprint(key string) uint64 {
	return farm.Fingerprint64([]byte(key))
}

// InShard returns true if parent belongs to shard index of n. Every parent
// belongs to exactly one shard.
func InShard(parent string, index, n int) bool {
	if n <= 1 {
		return true
	}
	return fingerprint(parent)%uint64(n) == uint64(index)
}

type grouperState int

const (
	// accumulating: records with the current key are appended to buf.
	accumulating grouperState = iota
	// flushReady: buf holds a complete group. pending, if not nil, is the
	// first record of the next group.
	flushReady
	done
)

// Grouper partitions a record stream into groups of records that share a
// parent key. With sorted input (all records of a parent adjacent, as
// produced by an aligner run on digested monomers) it holds one group in
// memory at a time.
//
// Typical use:
//
//	g := NewGrouper(src, opts)
//	for g.Scan() {
//	  grp := g.Group()
//	  ...
//	}
//	if err := g.Err(); err != nil {...}
type Grouper struct {
	src  RecordSource
	opts Opts

	state   grouperState
	key     string
	buf     []*sam.Record
	pending *sam.Record
	group   Group
	err     error

	// flushed holds fingerprints of the parents released so far. Only used
	// with Opts.CheckSorted.
	flushed map[uint64]struct{}

	// Opts.Unsorted: every group, in first-seen order.
	unsorted []Group
	loaded   bool

	recordsIn int
	skipped   int
}

// NewGrouper creates a Grouper reading from src. Only opts.CheckSorted,
// opts.Unsorted, opts.NumShards and opts.ShardIndex are used.
func NewGrouper(src RecordSource, opts Opts) *Grouper {
	g := &Grouper{src: src, opts: opts}
	if opts.CheckSorted {
		g.flushed = map[uint64]struct{}{}
	}
	return g
}

// next reads the next record of the shard.
func (g *Grouper) next() (*sam.Record, error) {
	for {
		r, err := g.src.Read()
		if err != nil {
			return nil, err
		}
		g.recordsIn++
		if !InShard(ParentKey(r), g.opts.ShardIndex, g.opts.NumShards) {
			g.skipped++
			continue
		}
		return r, nil
	}
}

func (g *Grouper) start(r *sam.Record) error {
	g.key = ParentKey(r)
	g.buf = append(g.buf, r)
	if g.flushed != nil {
		if _, ok := g.flushed[fingerprint(g.key)]; ok {
			return fmt.Errorf("input is not grouped by concatemer: records of %s are not adjacent", g.key)
		}
	}
	return nil
}

// Scan reads the next group. It returns false at the end of the input or on
// error.
func (g *Grouper) Scan() bool {
	if g.opts.Unsorted {
		return g.scanUnsorted()
	}
	for {
		switch g.state {
		case done:
			return false
		case flushReady:
			g.group = Group{Parent: g.key, Records: g.buf}
			g.buf = nil
			if g.flushed != nil {
				g.flushed[fingerprint(g.key)] = struct{}{}
			}
			if g.pending == nil {
				g.state = done
				return true
			}
			r := g.pending
			g.pending = nil
			g.state = accumulating
			if err := g.start(r); err != nil {
				g.err = err
				g.state = done
			}
			return true
		case accumulating:
			r, err := g.next()
			if err == io.EOF {
				if len(g.buf) == 0 {
					g.state = done
				} else {
					g.state = flushReady
				}
				continue
			}
			if err != nil {
				g.err = err
				g.state = done
				return false
			}
			if len(g.buf) == 0 {
				if err := g.start(r); err != nil {
					g.err = err
					g.state = done
					return false
				}
				continue
			}
			if ParentKey(r) == g.key {
				g.buf = append(g.buf, r)
				continue
			}
			g.pending = r
			g.state = flushReady
		}
	}
}

func (g *Grouper) scanUnsorted() bool {
	if !g.loaded {
		g.loaded = true
		index := map[string]int{}
		for {
			r, err := g.next()
			if err == io.EOF {
				break
			}
			if err != nil {
				g.err = err
				g.unsorted = nil
				return false
			}
			key := ParentKey(r)
			i, ok := index[key]
			if !ok {
				i = len(g.unsorted)
				index[key] = i
				g.unsorted = append(g.unsorted, Group{Parent: key})
			}
			g.unsorted[i].Records = append(g.unsorted[i].Records, r)
		}
	}
	if len(g.unsorted) == 0 {
		return false
	}
	g.group = g.unsorted[0]
	g.unsorted[0] = Group{}
	g.unsorted = g.unsorted[1:]
	return true
}

// Group returns the group read by the last successful Scan.
func (g *Grouper) Group() Group { return g.group }

// Err returns the error, if any, that stopped Scan.
func (g *Grouper) Err() error { return g.err }

// RecordsIn is the number of records read from the source so far.
func (g *Grouper) RecordsIn() int { return g.recordsIn }

// Skipped is the number of records dropped because their parent belongs to
// another shard.
func (g *Grouper) Skipped() int { return g.skipped }
