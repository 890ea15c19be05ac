// Package caseid 案件编号
//
// 编号有两种形态：
//
//	Draft  评估中的案件   EVAL-YYYYMMDD-NNN-客户名
//	Formal 已成案的项目   YYYYMMDD-NNN-客户名
package caseid

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind 编号形态
type Kind int

const (
	Draft Kind = iota + 1
	Formal
)

const (
	draftPrefix = "EVAL-"
	dateLayout  = "20060102"
	maxSeq      = 999
)

var (
	ErrInvalidID    = errors.New("invalid case id")
	ErrAlreadyFinal = errors.New("case id is already formal")
	ErrSeqOverflow  = errors.New("case sequence exhausted for the day")
)

// Identity 案件编号
type Identity struct {
	Kind Kind
	Date string // YYYYMMDD
	Seq  int
	Name string
}

// NewDraft 创建评估编号
func NewDraft(day time.Time, seq int, name string) (Identity, error) {
	return build(Draft, day, seq, name)
}

// NewFormal 创建正式编号
func NewFormal(day time.Time, seq int, name string) (Identity, error) {
	return build(Formal, day, seq, name)
}

func build(kind Kind, day time.Time, seq int, name string) (Identity, error) {
	if seq < 1 || seq > maxSeq {
		return Identity{}, ErrSeqOverflow
	}
	name = SanitizeName(name)
	if name == "" {
		return Identity{}, fmt.Errorf("%w: empty customer name", ErrInvalidID)
	}
	return Identity{Kind: kind, Date: day.Format(dateLayout), Seq: seq, Name: name}, nil
}

// Parse 解析编号字符串
func Parse(s string) (Identity, error) {
	kind := Formal
	rest := s
	if strings.HasPrefix(s, draftPrefix) {
		kind = Draft
		rest = strings.TrimPrefix(s, draftPrefix)
	}

	parts := strings.SplitN(rest, "-", 3)
	if len(parts) != 3 || parts[2] == "" {
		return Identity{}, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	if len(parts[0]) != len(dateLayout) {
		return Identity{}, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	if _, err := time.Parse(dateLayout, parts[0]); err != nil {
		return Identity{}, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	if len(parts[1]) != 3 {
		return Identity{}, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	seq, err := strconv.Atoi(parts[1])
	if err != nil || seq < 1 {
		return Identity{}, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}

	return Identity{Kind: kind, Date: parts[0], Seq: seq, Name: parts[2]}, nil
}

// String 渲染编号
func (id Identity) String() string {
	body := fmt.Sprintf("%s-%03d-%s", id.Date, id.Seq, id.Name)
	if id.Kind == Draft {
		return draftPrefix + body
	}
	return body
}

// IsDraft 是否评估编号
func (id Identity) IsDraft() bool {
	return id.Kind == Draft
}

// Prefix 同形态同日期编号的公共前缀，用于计算流水号
func (id Identity) Prefix() string {
	return PrefixFor(id.Kind, id.Date)
}

// Formalize 评估编号转为正式编号，保留客户名
func (id Identity) Formalize(day time.Time, seq int) (Identity, error) {
	if id.Kind != Draft {
		return Identity{}, ErrAlreadyFinal
	}
	return build(Formal, day, seq, id.Name)
}

// PrefixFor 返回某形态某日期的编号前缀，date 格式 YYYYMMDD
func PrefixFor(kind Kind, date string) string {
	if kind == Draft {
		return draftPrefix + date + "-"
	}
	return date + "-"
}

// DateOf 把时间格式化为编号日期
func DateOf(day time.Time) string {
	return day.Format(dateLayout)
}

// SeqFrom 从已有编号中取流水号，不合法返回0
func SeqFrom(s string) int {
	id, err := Parse(s)
	if err != nil {
		return 0
	}
	return id.Seq
}

// SanitizeName 去掉文件名非法字符
func SanitizeName(name string) string {
	name = strings.TrimSpace(name)
	return strings.Map(func(r rune) rune {
		switch r {
		case '\\', '/', ':', '*', '?', '"', '<', '>', '|':
			return -1
		}
		return r
	}, name)
}
