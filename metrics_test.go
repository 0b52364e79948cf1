package seqfile

import (
	"strings"
	"testing"

	"github.com/aalhour/seqfile/internal/testutil"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func histogramCount(t *testing.T, h prometheus.Histogram) uint64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, h.Write(&m))
	return m.GetHistogram().GetSampleCount()
}

func TestMetrics_WriterAndReader(t *testing.T) {
	fs := NewMemFS()
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	opts := regimeOptions(CompressionBlock, "deflate")
	opts.BlockRecords = 10
	opts.Metrics = m
	writeDatums(t, fs, "/a.seq", opts, testutil.Generate(113, 95))

	require.Equal(t, 95.0, promtestutil.ToFloat64(m.RecordsWritten))
	require.Equal(t, 10.0, promtestutil.ToFloat64(m.Blocks))
	require.Equal(t, 10.0, promtestutil.ToFloat64(m.SyncMarkers))
	require.Equal(t, float64(len(fileBytes(t, fs, "/a.seq"))), promtestutil.ToFloat64(m.BytesWritten))

	r, err := Open(fs, "/a.seq", ReaderOptions{Metrics: m})
	require.NoError(t, err)
	var rec RawRecord
	for {
		ok, err := r.NextRaw(&rec)
		require.NoError(t, err)
		if !ok {
			break
		}
	}
	require.NoError(t, r.Close())
	require.Equal(t, 95.0, promtestutil.ToFloat64(m.RecordsRead))

	n, err := promtestutil.GatherAndCount(reg, "seqfile_records_written_total", "seqfile_records_read_total")
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestMetrics_Sorter(t *testing.T) {
	fs := NewMemFS()
	writeDatums(t, fs, "/data/in.seq", DefaultWriterOptions(), dupDatums(0, 2000, 50))

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	opts := sorterOptions(16<<10, 4)
	opts.Metrics = m
	opts.Combiner = func(key []byte, values [][]byte, emit func([]byte) error) error {
		return emit(values[0])
	}
	s, err := NewSorter(fs, opts)
	require.NoError(t, err)
	require.NoError(t, s.Sort("/data/in.seq", "/data/out.seq"))

	require.Greater(t, promtestutil.ToFloat64(m.Spills), 4.0)
	require.GreaterOrEqual(t, promtestutil.ToFloat64(m.MergePasses), 2.0)
	require.Equal(t, 50.0, promtestutil.ToFloat64(m.CombinedRuns))
	require.Equal(t, uint64(1), histogramCount(t, m.SortDuration))
	require.Equal(t, uint64(promtestutil.ToFloat64(m.MergePasses)), histogramCount(t, m.MergeDuration))

	err = promtestutil.GatherAndCompare(reg, strings.NewReader(`
# HELP seqfile_combined_runs_total Runs of equal keys handed to a combiner.
# TYPE seqfile_combined_runs_total counter
seqfile_combined_runs_total 50
`), "seqfile_combined_runs_total")
	require.NoError(t, err)
}

func TestMetrics_Nil(t *testing.T) {
	var m *Metrics
	m.recordWritten()
	m.bytesWritten(10)
	m.recordRead()
	m.syncMarker()
	m.block()
	m.spill()
	m.combinedRun()
}
