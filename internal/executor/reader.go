package executor

import (
	"bufio"
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Sample is one training example.
type Sample struct {
	X []float64
	Y []float64
}

// ParseLine parses "x1,...,xn;y1,...,ym".
func ParseLine(line string) (Sample, error) {
	features, targets, ok := strings.Cut(line, ";")
	if !ok {
		return Sample{}, errors.New("missing ';' between features and targets")
	}
	x, err := parseFloats(features)
	if err != nil {
		return Sample{}, errors.WithMessage(err, "features")
	}
	y, err := parseFloats(targets)
	if err != nil {
		return Sample{}, errors.WithMessage(err, "targets")
	}
	return Sample{X: x, Y: y}, nil
}

func parseFloats(s string) ([]float64, error) {
	fields := strings.Split(s, ",")
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "value %d", i)
		}
		out[i] = v
	}
	return out, nil
}

// readSamples streams the samples of every file in paths onto the returned
// channel using threads concurrent readers. Blank lines and lines starting
// with '#' are skipped. The channel is closed once all readers are done;
// wait then returns the first reader error.
func readSamples(ctx context.Context, paths []string, threads int) (samples <-chan Sample, wait func() error) {
	g, ctx := errgroup.WithContext(ctx)
	files := make(chan string)
	out := make(chan Sample, 64)

	g.Go(func() error {
		defer close(files)
		for _, p := range paths {
			select {
			case files <- p:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
	for range threads {
		g.Go(func() error {
			for path := range files {
				if err := readFile(ctx, path, out); err != nil {
					return err
				}
			}
			return nil
		})
	}

	done := make(chan error, 1)
	go func() {
		err := g.Wait()
		close(out)
		done <- err
	}()
	return out, func() error { return <-done }
}

func readFile(ctx context.Context, path string, out chan<- Sample) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "executor: opening sample file")
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		s, err := ParseLine(line)
		if err != nil {
			return errors.WithMessagef(err, "executor: %s:%d", path, lineNo)
		}
		select {
		case out <- s:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return errors.Wrapf(scanner.Err(), "executor: reading %s", path)
}

// ProbeDims returns the feature and target widths of the first sample in path.
func ProbeDims(path string) (in, out int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, errors.Wrap(err, "executor: opening sample file")
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		s, err := ParseLine(line)
		if err != nil {
			return 0, 0, errors.WithMessagef(err, "executor: %s", path)
		}
		return len(s.X), len(s.Y), nil
	}
	if err := scanner.Err(); err != nil {
		return 0, 0, errors.Wrapf(err, "executor: reading %s", path)
	}
	return 0, 0, errors.Errorf("executor: %s has no samples", path)
}
