package service

import "time"

// Clock 供期限、作答计时和超时判断取当前时间。测试里用假时钟推进。
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func SystemClock() Clock { return systemClock{} }
