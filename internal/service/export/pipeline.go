package export

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"iter"
	"os"

	"golang.org/x/sync/errgroup"

	"metricql/internal/domain"
	"metricql/internal/service/format"
)

const writeBufferSize = 64 << 10

// rowSeq adapts a slice of rows to the sequence the pipeline reads.
func rowSeq(rows []domain.Row) iter.Seq2[domain.Row, error] {
	return func(yield func(domain.Row, error) bool) {
		for _, r := range rows {
			if !yield(r, nil) {
				return
			}
		}
	}
}

// writeCSV streams rows into a CSV file at path. Rows are read in chunks,
// converted to records and written by separate stages. The file is removed
// when any stage fails. It returns the number of data rows written.
func writeCSV(ctx context.Context, path string, cols []column, rows iter.Seq2[domain.Row, error], chunkSize int, opts format.Options) (n int, err error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create csv file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close csv file: %w", cerr)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	chunks := make(chan []domain.Row, 1)
	records := make(chan [][]string, 1)

	g.Go(func() error {
		defer close(chunks)
		chunk := make([]domain.Row, 0, chunkSize)
		for row, err := range rows {
			if err != nil {
				return fmt.Errorf("read row: %w", err)
			}
			if err := gctx.Err(); err != nil {
				return err
			}
			chunk = append(chunk, row)
			if len(chunk) < chunkSize {
				continue
			}
			select {
			case chunks <- chunk:
			case <-gctx.Done():
				return gctx.Err()
			}
			chunk = make([]domain.Row, 0, chunkSize)
		}
		if len(chunk) == 0 {
			return nil
		}
		select {
		case chunks <- chunk:
			return nil
		case <-gctx.Done():
			return gctx.Err()
		}
	})

	g.Go(func() error {
		defer close(records)
		for chunk := range chunks {
			recs := make([][]string, len(chunk))
			for i, row := range chunk {
				rec := make([]string, len(cols))
				for j, c := range cols {
					rec[j] = format.FormatValue(c.item, row[c.id], opts)
				}
				recs[i] = rec
			}
			select {
			case records <- recs:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	g.Go(func() error {
		bw := bufio.NewWriterSize(f, writeBufferSize)
		w := csv.NewWriter(bw)
		headers := make([]string, len(cols))
		for i, c := range cols {
			headers[i] = c.header
		}
		if err := w.Write(headers); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
		for recs := range records {
			for _, rec := range recs {
				if err := w.Write(rec); err != nil {
					return fmt.Errorf("write csv record: %w", err)
				}
			}
			n += len(recs)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return fmt.Errorf("flush csv: %w", err)
		}
		if err := bw.Flush(); err != nil {
			return fmt.Errorf("flush csv file: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return 0, err
	}
	return n, nil
}
