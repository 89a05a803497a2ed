// Package override indexes a directory of single-record override files.
package override

import (
	"github.com/RoaringBitmap/roaring"
	billy "github.com/go-git/go-billy/v5"
	"github.com/hashicorp/go-multierror"
)

// Record locates one override record.
type Record struct {
	Key   string
	Title string
	// Path is the file name relative to the index filesystem.
	Path string

	ord uint32
}

// Index maps record keys to override files. Records keep the slot of the
// first file that produced their key; a later file with the same key only
// replaces the path. Consumption is tracked per slot in a bitmap.
type Index struct {
	fs       billy.Filesystem
	records  []*Record
	byKey    map[string]*Record
	consumed *roaring.Bitmap
	skipped  *multierror.Error
}

// NewIndex returns an empty index whose record paths are relative to the
// root of fs.
func NewIndex(fs billy.Filesystem) *Index {
	return &Index{
		fs:       fs,
		byKey:    make(map[string]*Record),
		consumed: roaring.New(),
	}
}

// Put adds or replaces the record for key. It reports whether an earlier
// record for the same key was overwritten.
func (x *Index) Put(key, title, path string) (replaced bool) {
	if r, ok := x.byKey[key]; ok {
		r.Path = path
		r.Title = title
		return true
	}
	r := &Record{Key: key, Title: title, Path: path, ord: uint32(len(x.records))}
	x.records = append(x.records, r)
	x.byKey[key] = r
	return false
}

// Lookup returns the record for key.
func (x *Index) Lookup(key string) (*Record, bool) {
	r, ok := x.byKey[key]
	return r, ok
}

// MarkConsumed records that r replaced a record of the original dump.
func (x *Index) MarkConsumed(r *Record) { x.consumed.Add(r.ord) }

// Consumed reports whether r has been used in place.
func (x *Index) Consumed(r *Record) bool { return x.consumed.Contains(r.ord) }

// Unconsumed returns the records never used in place, in insertion order.
func (x *Index) Unconsumed() []*Record {
	out := make([]*Record, 0, len(x.records)-int(x.consumed.GetCardinality()))
	for _, r := range x.records {
		if !x.consumed.Contains(r.ord) {
			out = append(out, r)
		}
	}
	return out
}

// Records returns every record in insertion order.
func (x *Index) Records() []*Record { return x.records }

// Len is the number of distinct keys.
func (x *Index) Len() int { return len(x.records) }

// Open opens the file backing r.
func (x *Index) Open(r *Record) (billy.File, error) { return x.fs.Open(r.Path) }

// Location renders the path of r for diagnostics.
func (x *Index) Location(r *Record) string { return x.fs.Join(x.fs.Root(), r.Path) }

// Skipped returns the problems of every file left out of the index, or nil.
func (x *Index) Skipped() error { return x.skipped.ErrorOrNil() }

// SkippedCount is the number of files left out of the index.
func (x *Index) SkippedCount() int {
	if x.skipped == nil {
		return 0
	}
	return len(x.skipped.Errors)
}

// SkippedReasons describes each file left out of the index, in scan order.
func (x *Index) SkippedReasons() []string {
	if x.skipped == nil {
		return nil
	}
	out := make([]string, len(x.skipped.Errors))
	for i, err := range x.skipped.Errors {
		out[i] = err.Error()
	}
	return out
}

func (x *Index) skip(err error) { x.skipped = multierror.Append(x.skipped, err) }
