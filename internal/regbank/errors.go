package regbank

import (
	"errors"
	"fmt"
)

// RangeError 地址/长度越界、写只读区或写入值超出约束
type RangeError struct {
	Op     string
	Addr   int
	Count  int
	Reason string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("regbank: %s addr=%d count=%d: %s", e.Op, e.Addr, e.Count, e.Reason)
}

// IsRangeError 判断 err 链中是否包含 RangeError
func IsRangeError(err error) bool {
	var re *RangeError
	return errors.As(err, &re)
}
