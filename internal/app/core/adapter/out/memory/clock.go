package memory

import "time"

// Clock 結算 worker 判斷週期是否到期用的時間來源
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// SystemClock 使用系統時間
var SystemClock Clock = systemClock{}
