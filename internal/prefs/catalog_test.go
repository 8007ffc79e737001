package prefs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCatalogMissingFile(t *testing.T) {
	got, err := LoadCatalog(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
exchanges:
  - name: Kraken Futures
    max_leverage: 50
    markets:
      - symbol: PF_XBTUSD
        title: BTC Perp
        ref_price: "64100.5"
      - symbol: PF_ETHUSD
        ref_price: "3100"
`), 0o600))

	got, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "Kraken Futures", got[0].Name)
	require.Equal(t, 50, got[0].MaxLeverage)
	require.Len(t, got[0].Markets, 2)
	require.Equal(t, "64100.5", got[0].Markets[0].RefPrice.String())
	require.Equal(t, "PF_ETHUSD", got[0].Markets[1].Title)
}

func TestLoadCatalogRejectsBadEntries(t *testing.T) {
	cases := map[string]string{
		"no name":      "exchanges:\n  - max_leverage: 5\n",
		"no leverage":  "exchanges:\n  - name: X\n",
		"bad price":    "exchanges:\n  - name: X\n    max_leverage: 5\n    markets:\n      - symbol: A\n        ref_price: abc\n",
		"zero price":   "exchanges:\n  - name: X\n    max_leverage: 5\n    markets:\n      - symbol: A\n        ref_price: \"0\"\n",
		"invalid yaml": "exchanges: [",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "catalog.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
			_, err := LoadCatalog(path)
			require.Error(t, err)
		})
	}
}
