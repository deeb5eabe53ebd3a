// Package fdlimit raises the process file-descriptor limit so a large
// connection count does not exhaust open files mid ramp-up.
package fdlimit

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Raise はRLIMIT_NOFILEのソフトリミットをハードリミットまで引き上げる
// 失敗してもベストエフォート: 現在有効なリミットとエラーを返し、
// 呼び出し側は警告ログに留めて実行を継続する
func Raise() (uint64, error) {
	var limit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &limit); err != nil {
		return 0, fmt.Errorf("failed to get open file limit: %w", err)
	}

	if limit.Cur >= limit.Max {
		return limit.Cur, nil
	}

	limit.Cur = limit.Max
	if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &limit); err != nil {
		// 引き上げ失敗。現状のリミットで続行する
		var current unix.Rlimit
		if gerr := unix.Getrlimit(unix.RLIMIT_NOFILE, &current); gerr == nil {
			return current.Cur, fmt.Errorf("failed to raise open file limit: %w", err)
		}
		return 0, fmt.Errorf("failed to raise open file limit: %w", err)
	}

	return limit.Cur, nil
}
