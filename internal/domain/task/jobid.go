package task

import (
	"time"

	"github.com/google/uuid"
)

// jobIDLayout は日時プレフィクスの書式。後ろにUUID先頭8文字が続く
const jobIDLayout = "20060102-150405"

// JobID はジョブの一意識別子を表す値オブジェクト。
// 形式は YYYYMMDD-HHMMSS-xxxxxxxx で、日時順にソートできる
type JobID struct {
	value string
}

// NewJobID は現在時刻とランダムサフィックスから新しいJobIDを生成
func NewJobID() JobID {
	suffix := uuid.NewString()[:8]
	return JobID{value: time.Now().Format(jobIDLayout) + "-" + suffix}
}

// JobIDFromString は永続化された文字列表現からJobIDを復元
func JobIDFromString(s string) JobID {
	return JobID{value: s}
}

func (id JobID) String() string {
	return id.value
}

// Equals は同一ジョブを指すかを判定
func (id JobID) Equals(other JobID) bool {
	return id.value == other.value
}

// IsZero は未採番のゼロ値かを判定
func (id JobID) IsZero() bool {
	return id.value == ""
}
