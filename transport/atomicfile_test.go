package transport

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/netrack/ebtables/classifier"
	"github.com/netrack/ebtables/ebt"
)

func TestAtomicFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ebtables.atomic")
	tr := NewAtomicFileTransport(path, nil)
	ctx := context.Background()

	tbl := ebt.NewTable("filter", ebt.ValidHooks(ebt.HookInput.Bit()))
	blob, err := ebt.Serialize(tbl)
	require.NoError(t, err)

	require.NoError(t, tr.PutBlob(ctx, "filter", blob))

	counters := []classifier.Counter{{Packets: 3, Bytes: 180}}
	require.NoError(t, tr.PutCounters(ctx, "filter", counters))

	gotBlob, gotCounters, err := tr.FetchCurrent(ctx, "filter")
	require.NoError(t, err)
	require.Equal(t, blob.Bytes(), gotBlob.Bytes())
	require.Equal(t, counters, gotCounters)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestAtomicFileFetchInitialMatchesCurrent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ebtables.atomic")
	tr := NewAtomicFileTransport(path, nil)
	ctx := context.Background()

	tbl := ebt.NewTable("nat", ebt.ValidHooks(ebt.HookOutput.Bit()))
	blob, err := ebt.Serialize(tbl)
	require.NoError(t, err)
	require.NoError(t, tr.PutBlob(ctx, "nat", blob))

	initial, err := tr.FetchInitial(ctx, "nat")
	require.NoError(t, err)
	require.Equal(t, blob.Bytes(), initial.Bytes())
}
