package table

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/sagpant/mlpack/internal/errors"
	"github.com/sagpant/mlpack/internal/memory"
)

// CSVShardPath names the CSV shard file rank reads for a dataset source.
func CSVShardPath(source string, rank int) string {
	return fmt.Sprintf("%s.rank-%d.csv", source, rank)
}

// loadCSV reads a headerless CSV shard: one point per record, one
// attribute per field. Provenance ids are assigned in record order.
func loadCSV(alloc memory.Allocator, source string, rank int) (*Table, error) {
	path := CSVShardPath(source, rank)
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "table.load_csv", "open shard")
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "table.load_csv", "parse shard")
	}
	if len(records) == 0 {
		return nil, errors.Newf(errors.ErrorTypeStorage, "table.load_csv", "shard %s is empty", path)
	}

	attrs := len(records[0])
	data := alloc.AllocFloat64(len(records) * attrs)
	ids := make([]int64, len(records))
	for i, record := range records {
		if len(record) != attrs {
			alloc.Free(data)
			return nil, errors.Newf(errors.ErrorTypeStorage, "table.load_csv",
				"row %d has %d attributes, shard has %d", i, len(record), attrs)
		}
		for d, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				alloc.Free(data)
				return nil, errors.Wrap(err, errors.ErrorTypeStorage, "table.load_csv",
					fmt.Sprintf("row %d field %d", i, d))
			}
			data[i*attrs+d] = v
		}
		ids[i] = MakeID(rank, i)
	}
	return &Table{alloc: alloc, data: data, ids: ids, attrs: attrs, entries: len(records)}, nil
}
