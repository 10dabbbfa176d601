package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rbh-project/rbh/pkg/rbh"
	"github.com/rbh-project/rbh/pkg/rbh/iterator"
)

// findProjection asks for everything the two output modes can print.
var findProjection = rbh.Projection{
	Entry: rbh.EntryID | rbh.EntryParentID | rbh.EntryName | rbh.EntryStatx | rbh.EntrySymlink,
	Statx: rbh.StatxAll,
}

func runFind(cmd *cobra.Command, args []string) error {
	backendURI := viper.GetString("backend")
	if len(args) == 1 {
		backendURI = args[0]
	}
	if backendURI == "" {
		return errors.New("no backend URI given (argument or RBH_BACKEND)")
	}

	filter, err := buildFilter(flags)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := rbh.New(ctx, backendURI)
	if err != nil {
		return err
	}
	defer backend.Close()

	entries, err := backend.FilterEntries(ctx, filter, findProjection)
	if err != nil {
		return err
	}
	defer entries.Close()

	printer := newPrinter(backend, flags.ls)
	defer printer.flush()

	for {
		entry, err := entries.Next()
		if err != nil {
			if errors.Is(err, iterator.ErrNoMoreData) {
				return nil
			}
			return err
		}
		if err := printer.print(ctx, entry); err != nil {
			return err
		}
	}
}

// buildFilter translates the command line predicates into a filter AST.
// No flags means the null filter: every entry matches.
func buildFilter(f findFlags) (*rbh.Filter, error) {
	var predicates []*rbh.Filter

	if f.name != "" {
		predicates = append(predicates,
			rbh.Match(rbh.Field{ID: rbh.FieldName}, globToRegex(f.name), 0))
	}
	if f.iname != "" {
		predicates = append(predicates,
			rbh.Match(rbh.Field{ID: rbh.FieldName}, globToRegex(f.iname), rbh.RegexCaseInsensitive))
	}
	if f.fileType != "" {
		typeBits, err := parseType(f.fileType)
		if err != nil {
			return nil, err
		}
		predicates = append(predicates,
			rbh.Equal(rbh.Field{ID: rbh.FieldType}, rbh.UInt32Value(typeBits)))
	}
	if f.uid >= 0 {
		predicates = append(predicates,
			rbh.Equal(rbh.Field{ID: rbh.FieldUID}, rbh.UInt32Value(uint32(f.uid))))
	}
	if f.gid >= 0 {
		predicates = append(predicates,
			rbh.Equal(rbh.Field{ID: rbh.FieldGID}, rbh.UInt32Value(uint32(f.gid))))
	}
	if f.size != "" {
		sizeFilter, err := parseSize(f.size)
		if err != nil {
			return nil, err
		}
		predicates = append(predicates, sizeFilter)
	}
	if f.newerThan >= 0 {
		predicates = append(predicates,
			rbh.GreaterOrEqual(rbh.Field{ID: rbh.FieldMtime}, rbh.Int64Value(f.newerThan)))
	}
	if f.inum != 0 {
		predicates = append(predicates,
			rbh.Equal(rbh.Field{ID: rbh.FieldIno}, rbh.UInt64Value(f.inum)))
	}
	if f.symlink != "" {
		predicates = append(predicates,
			rbh.Match(rbh.Field{ID: rbh.FieldSymlink}, globToRegex(f.symlink), 0))
	}

	switch len(predicates) {
	case 0:
		return nil, nil
	case 1:
		return predicates[0], nil
	default:
		return rbh.And(predicates...), nil
	}
}

// globToRegex converts a find-style glob to an anchored regex.
func globToRegex(glob string) string {
	var b strings.Builder
	b.WriteByte('^')
	for _, r := range glob {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteByte('.')
		case '.', '+', '(', ')', '[', ']', '{', '}', '^', '$', '|', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('$')
	return b.String()
}

// parseType maps find(1) type letters to mode type bits.
func parseType(letter string) (uint32, error) {
	switch letter {
	case "f":
		return rbh.TypeRegular, nil
	case "d":
		return rbh.TypeDirectory, nil
	case "l":
		return rbh.TypeSymlink, nil
	case "b":
		return rbh.TypeBlockDev, nil
	case "c":
		return rbh.TypeCharDev, nil
	case "p":
		return rbh.TypeFifo, nil
	case "s":
		return rbh.TypeSocket, nil
	default:
		return 0, fmt.Errorf("unknown type %q (want f, d, l, b, c, p or s)", letter)
	}
}

// parseSize parses N (exact), +N (greater) and -N (lower) byte sizes.
func parseSize(spec string) (*rbh.Filter, error) {
	field := rbh.Field{ID: rbh.FieldSize}

	op := rbh.OpEqual
	digits := spec
	switch {
	case strings.HasPrefix(spec, "+"):
		op = rbh.OpGreater
		digits = spec[1:]
	case strings.HasPrefix(spec, "-"):
		op = rbh.OpLess
		digits = spec[1:]
	}

	bytes, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad size %q: %w", spec, err)
	}
	return rbh.Compare(op, field, rbh.UInt64Value(bytes)), nil
}

// printer renders matching entries, reconstructing paths by walking
// parent identifiers through the backend.
type printer struct {
	backend rbh.Backend
	long    bool
	table   *tablewriter.Table

	// paths memoizes id -> path so deep trees cost one lookup per
	// directory, not per file.
	paths map[string]string
}

func newPrinter(backend rbh.Backend, long bool) *printer {
	p := &printer{
		backend: backend,
		long:    long,
		paths:   map[string]string{"": ""},
	}
	if long {
		p.table = tablewriter.NewWriter(os.Stdout)
		p.table.SetHeader([]string{"MODE", "UID", "GID", "SIZE", "MTIME", "PATH"})
		p.table.SetBorder(false)
	}
	return p
}

func (p *printer) print(ctx context.Context, entry *rbh.Entry) error {
	path, err := p.path(ctx, entry)
	if err != nil {
		return err
	}

	if !p.long {
		fmt.Println(path)
		return nil
	}

	var mode, uid, gid, size, mtime string
	if s := entry.Statx; s != nil {
		mode = strconv.FormatUint(uint64(s.Mode), 8)
		uid = strconv.FormatUint(uint64(s.UID), 10)
		gid = strconv.FormatUint(uint64(s.GID), 10)
		size = strconv.FormatUint(s.Size, 10)
		mtime = time.Unix(s.Mtime.Sec, int64(s.Mtime.Nsec)).UTC().Format(time.RFC3339)
	}
	p.table.Append([]string{mode, uid, gid, size, mtime, path})
	return nil
}

func (p *printer) flush() {
	if p.table != nil {
		p.table.Render()
	}
}

// path rebuilds the entry's path under the edge it was observed
// through, resolving ancestors with single-entry queries.
func (p *printer) path(ctx context.Context, entry *rbh.Entry) (string, error) {
	parent, err := p.dirPath(ctx, entry.ParentID)
	if err != nil {
		return "", err
	}
	if entry.Name == "" {
		return "/", nil
	}
	return parent + "/" + entry.Name, nil
}

func (p *printer) dirPath(ctx context.Context, id rbh.ID) (string, error) {
	if id.IsRoot() {
		return "", nil
	}
	if cached, ok := p.paths[string(id)]; ok {
		return cached, nil
	}

	idFilter := rbh.Equal(rbh.Field{ID: rbh.FieldEntryID}, rbh.BinaryValue(id))
	proj := rbh.Projection{Entry: rbh.EntryID | rbh.EntryParentID | rbh.EntryName}

	ancestor, err := rbh.FilterOne(ctx, p.backend, idFilter, proj)
	if err != nil {
		if rbh.IsNoSuchEntry(err) {
			// Orphaned edge: fall back to the raw identifier.
			return "<" + id.String() + ">", nil
		}
		return "", err
	}

	parent, err := p.dirPath(ctx, ancestor.ParentID)
	if err != nil {
		return "", err
	}

	path := parent + "/" + ancestor.Name
	if ancestor.Name == "" {
		path = parent
	}
	p.paths[string(id)] = path
	return path, nil
}
