package catalog

import (
	"fmt"
	"strconv"
)

// EncodePosition folds a page number and a 1-based in-page index into a
// single comparable rank. Page 1 encodes to the index itself; any later
// page concatenates the page number with the index zero-padded to two
// digits, so page 3 index 7 becomes 307. Any rank on page 1 therefore
// sorts below any rank on page 2 and beyond. Downstream display logic
// depends on this exact digit layout.
func EncodePosition(page, index int) int {
	if page == 1 {
		return index
	}
	rank, err := strconv.Atoi(fmt.Sprintf("%d%02d", page, index))
	if err != nil {
		// Unreachable for positive inputs; keep the page ordering anyway.
		return page * 100
	}
	return rank
}

// shardBucket maps an upper volume bound to the media shard that hosts it.
type shardBucket struct {
	maxVol int64
	shard  int
}

// Volume thresholds for the catalog's media shards, ascending. Identifiers
// past the last bound land on the final shard.
var shardBuckets = []shardBucket{
	{143, 1},
	{287, 2},
	{431, 3},
	{719, 4},
	{1007, 5},
	{1061, 6},
	{1115, 7},
	{1169, 8},
	{1313, 9},
	{1601, 10},
	{1655, 11},
	{1919, 12},
	{2045, 13},
}

const lastShard = 14

// AssetURL derives the deterministic image location for a numeric product
// identifier. The volume (id / 100000) selects the shard bucket.
func AssetURL(id int64) string {
	vol := id / 100000
	shard := lastShard
	for _, b := range shardBuckets {
		if vol <= b.maxVol {
			shard = b.shard
			break
		}
	}
	return fmt.Sprintf("https://basket-%02d.wbbasket.ru/vol%d/part%d/%d/images/c246x328/1.webp", shard, vol, id/1000, id)
}
