package catalog

import (
	"errors"
	"fmt"
)

// InvalidCategoryError 表示调用方给了未知分类。
// 约束：校验发生在发请求之前，此错误出现时必然没有产生网络调用。
type InvalidCategoryError struct {
	Name string
}

func (e *InvalidCategoryError) Error() string {
	return fmt.Sprintf("未知分类：%q", e.Name)
}

// IsInvalidCategory 判断 err 是否为 *InvalidCategoryError。
func IsInvalidCategory(err error) bool {
	var e *InvalidCategoryError
	return errors.As(err, &e)
}

// EmptyResultError 表示页面抓取成功、但解码不出任何记录。
// 必须与网络失败可区分：“没有结果”不等于“连不上源站”。
type EmptyResultError struct {
	URL string
}

func (e *EmptyResultError) Error() string {
	return fmt.Sprintf("页面无可用记录：%s", e.URL)
}

// IsEmptyResult 判断 err 是否为 *EmptyResultError。
func IsEmptyResult(err error) bool {
	var e *EmptyResultError
	return errors.As(err, &e)
}
