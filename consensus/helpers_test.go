package consensus

import (
	"fmt"
	"time"

	"github.com/ahwlsqja/proofchain/types"
)

var testTime = time.Unix(1700000000, 0)

func testBlock(index uint64, prev string) *types.Block {
	return types.NewBlock(index, fmt.Sprintf("tx-%d", index), prev, testTime)
}
