package table

import (
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"

	"github.com/sagpant/mlpack/internal/errors"
	"github.com/sagpant/mlpack/internal/memory"
)

// ShardRow is the parquet row shape of one point in a shard file.
type ShardRow struct {
	ID    int64     `parquet:"id"`
	Point []float64 `parquet:"point"`
}

// ShardPath names the shard file rank reads for a dataset source.
func ShardPath(source string, rank int) string {
	return fmt.Sprintf("%s.rank-%d.parquet", source, rank)
}

// Load reads rank's shard of the dataset named by source. Parquet is the
// primary format; a CSV shard is accepted when no parquet file exists.
// Every row must carry the same dimensionality.
func Load(alloc memory.Allocator, source string, rank int) (*Table, error) {
	path := ShardPath(source, rank)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return loadCSV(alloc, source, rank)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "table.load", "open shard")
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "table.load", "stat shard")
	}
	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "table.load", "parse shard")
	}

	pr := parquet.NewGenericReader[ShardRow](pf)
	rows := make([]ShardRow, pr.NumRows())
	if _, err := pr.Read(rows); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "table.load", "read shard rows")
	}
	if len(rows) == 0 {
		return nil, errors.Newf(errors.ErrorTypeStorage, "table.load", "shard %s is empty", path)
	}

	attrs := len(rows[0].Point)
	data := alloc.AllocFloat64(len(rows) * attrs)
	ids := make([]int64, len(rows))
	for i, row := range rows {
		if len(row.Point) != attrs {
			alloc.Free(data)
			return nil, errors.Newf(errors.ErrorTypeStorage, "table.load",
				"row %d has %d attributes, shard has %d", i, len(row.Point), attrs)
		}
		copy(data[i*attrs:(i+1)*attrs], row.Point)
		ids[i] = MakeID(rank, int(row.ID))
	}
	return &Table{alloc: alloc, data: data, ids: ids, attrs: attrs, entries: len(rows)}, nil
}

// WriteShard writes rank's shard of a dataset. values holds row-major
// points; row ids are assigned sequentially.
func WriteShard(source string, rank, attrs int, values []float64) error {
	if attrs <= 0 || len(values)%attrs != 0 {
		return errors.New(errors.ErrorTypeValidation, "table.write_shard", "values do not form whole rows")
	}
	f, err := os.Create(ShardPath(source, rank))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeStorage, "table.write_shard", "create shard")
	}
	defer f.Close()

	pw := parquet.NewGenericWriter[ShardRow](f, parquet.Compression(&parquet.Zstd))
	entries := len(values) / attrs
	rows := make([]ShardRow, entries)
	for i := 0; i < entries; i++ {
		rows[i] = ShardRow{ID: int64(i), Point: values[i*attrs : (i+1)*attrs]}
	}
	if _, err := pw.Write(rows); err != nil {
		return errors.Wrap(err, errors.ErrorTypeStorage, "table.write_shard", "write shard rows")
	}
	if err := pw.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeStorage, "table.write_shard", "close shard writer")
	}
	return nil
}
