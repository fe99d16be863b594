package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	retry "github.com/avast/retry-go/v4"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rarstream"
)

var (
	password string
	logger   *zap.Logger
)

func main() {
	l, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger = l
	defer logger.Sync()

	root := &cobra.Command{
		Use:   "rarcat",
		Short: "Inspect and extract RAR4/RAR5 archives without unpacking them to disk first",
	}
	root.PersistentFlags().StringVar(&password, "password", "", "password for encrypted archives")

	root.AddCommand(listCmd(), catCmd(), extractCmd())

	if err := root.Execute(); err != nil {
		logger.Error("command failed", zap.Error(err))
		os.Exit(1)
	}
}

var (
	partVolRe    = regexp.MustCompile(`(?i)^(.*)\.part\d+\.rar$`)
	numericVolRe = regexp.MustCompile(`(?i)^(.*)\.(rar|r\d+|\d+)$`)
)

// discoverVolumes finds every sibling volume belonging to the same archive
// as the given path, using the same numeric/part naming schemes the
// library's own VolumeSet understands.
func discoverVolumes(first string) ([]string, error) {
	dir := filepath.Dir(first)
	base := filepath.Base(first)

	if !partVolRe.MatchString(base) && !numericVolRe.MatchString(base) {
		return []string{first}, nil
	}

	stemOf := func(name string) (string, bool) {
		if m := partVolRe.FindStringSubmatch(name); m != nil {
			return m[1], true
		}
		if m := numericVolRe.FindStringSubmatch(name); m != nil {
			return m[1], true
		}
		return "", false
	}
	stem, _ := stemOf(base)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var matches []string
	for _, e := range entries {
		name := e.Name()
		if s, ok := stemOf(name); ok && strings.EqualFold(s, stem) {
			matches = append(matches, filepath.Join(dir, name))
		}
	}
	if len(matches) == 0 {
		return []string{first}, nil
	}
	sort.Strings(matches)
	return matches, nil
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <archive>",
		Short: "List every file in the archive and its volume layout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeAll, err := openArchive(args[0])
			if err != nil {
				return err
			}
			defer closeAll()
			for _, f := range a.Files() {
				fmt.Printf("%12d  %s\n", f.UnpackedLength(), f.Name())
			}
			return nil
		},
	}
}

func catCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat <archive> <inner-file>",
		Short: "Stream one inner file's decoded bytes to stdout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeAll, err := openArchive(args[0])
			if err != nil {
				return err
			}
			defer closeAll()
			f, err := a.File(args[1])
			if err != nil {
				return err
			}
			r, err := f.Read(0, f.UnpackedLength()-1)
			if err != nil {
				return err
			}
			defer r.Close()
			_, err = io.Copy(os.Stdout, r)
			return err
		},
	}
}

func extractCmd() *cobra.Command {
	var outDir string
	var jobs int
	cmd := &cobra.Command{
		Use:   "extract <archive>",
		Short: "Extract every file to a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeAll, err := openArchive(args[0])
			if err != nil {
				return err
			}
			defer closeAll()

			// Files in the same solid run share one decoder and materialize
			// under solidRun's own lock, so fanning extraction out across a
			// bounded pool is safe and lets independent (non-solid or
			// already-materialized) files extract concurrently.
			p := pool.New().WithMaxGoroutines(jobs).WithErrors()
			for _, f := range a.Files() {
				f := f
				if f.IsDir() {
					continue
				}
				p.Go(func() error { return extractOne(f, outDir) })
			}
			return p.Wait()
		},
	}
	cmd.Flags().StringVar(&outDir, "out", ".", "destination directory")
	cmd.Flags().IntVar(&jobs, "jobs", 4, "maximum concurrent file extractions")
	return cmd
}

func extractOne(f *rarstream.InnerFile, outDir string) error {
	start := time.Now()
	dest := filepath.Join(outDir, filepath.FromSlash(f.Name()))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	r, err := f.Read(0, f.UnpackedLength()-1)
	if err != nil {
		out.Close()
		return err
	}
	_, err = io.Copy(out, r)
	r.Close()
	out.Close()
	if err != nil {
		return err
	}
	logger.Info("extracted file", zap.String("name", f.Name()), zap.Duration("took", time.Since(start)))
	return nil
}

// volumeHandle pairs an opened VolumeSource with its Close method, since
// rarstream.VolumeSource itself has no notion of closing (some transports,
// like an HTTP range client, have nothing to close).
type volumeHandle interface {
	rarstream.VolumeSource
	Close() error
}

// openArchive discovers every volume for path, opens each with a bounded
// retry (transport flakiness belongs at this I/O boundary, never inside
// the decoder), and returns the resulting Archive plus a cleanup function.
func openArchive(path string) (*rarstream.Archive, func(), error) {
	paths, err := discoverVolumes(path)
	if err != nil {
		return nil, nil, err
	}

	var sources []rarstream.VolumeSource
	var toClose []volumeHandle
	for _, p := range paths {
		var v volumeHandle
		err := retry.Do(func() error {
			opened, err := rarstream.OpenFileVolume(p)
			if err != nil {
				return err
			}
			v = opened
			return nil
		}, retry.Attempts(3), retry.Delay(100*time.Millisecond))
		if err != nil {
			for _, c := range toClose {
				c.Close()
			}
			return nil, nil, fmt.Errorf("opening volume %q: %w", p, err)
		}
		sources = append(sources, v)
		toClose = append(toClose, v)
	}

	var opts []rarstream.Option
	if password != "" {
		opts = append(opts, rarstream.WithPassword(password))
	}
	a, err := rarstream.OpenArchive(sources, opts...)
	if err != nil {
		for _, c := range toClose {
			c.Close()
		}
		return nil, nil, err
	}
	closeAll := func() {
		for _, c := range toClose {
			c.Close()
		}
	}
	return a, closeAll, nil
}
