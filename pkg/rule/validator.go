// Package rule 提供结构体和字段验证功能的封装，基于 go-playground/validator 实现.
//
// 标签名为 rule，除内置规则外额外注册:
//
//	patient_id  可解析为 int64 的患者编号，允许首尾空白
//	department  科室名，等价于 max=50
package rule

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	inst *validator.Validate
	once sync.Once
)

// initValidator 尝试复用 gin 的 validator 引擎；若不可用则新建.
func initValidator() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		inst = v
	} else {
		inst = validator.New()
	}

	inst.SetTagName("rule")

	// 内置规则名固定，注册失败只会是编程错误.
	if err := inst.RegisterValidation("patient_id", isPatientID); err != nil {
		panic(err)
	}

	inst.RegisterAlias("department", "max=50")
}

func isPatientID(fl validator.FieldLevel) bool {
	s, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}

	_, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)

	return err == nil
}

// lazyInit 初始化全局 validator（幂等）.
func lazyInit() {
	once.Do(initValidator)
}

// Engine 返回全局 *validator.Validate，若未初始化则先初始化.
func Engine() *validator.Validate {
	lazyInit()

	return inst
}

// RegisterValidation 代理 RegisterValidation，确保已初始化.
func RegisterValidation(tag string, fn validator.Func, opts ...bool) error {
	lazyInit()

	return inst.RegisterValidation(tag, fn, opts...)
}

// ValidationErrors 字段名到可读错误信息.
type ValidationErrors map[string]string

// Error 按字段名排序输出，结果稳定.
func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}

	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+" "+v[f])
	}

	return strings.Join(parts, "; ")
}

// Explain 把 validator 的错误转换为 ValidationErrors，其他错误原样返回.
func Explain(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := make(ValidationErrors, len(verrs))
	for _, fe := range verrs {
		out[fe.Namespace()] = message(fe)
	}

	return out
}

func message(fe validator.FieldError) string {
	switch fe.ActualTag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "oneof":
		return "must be one of [" + fe.Param() + "]"
	case "patient_id":
		return "must be an integer patient id"
	default:
		return fmt.Sprintf("failed on %q", fe.Tag())
	}
}

// ValidateStruct 对结构体执行完整校验，返回原始 error（可用 Explain 转换）.
func ValidateStruct(s any) error {
	lazyInit()

	return inst.Struct(s)
}

// ValidateVar 按规则对单个变量校验，例如: ValidateVar("abc", "required,email").
func ValidateVar(field any, tag string) error {
	lazyInit()

	return inst.Var(field, tag)
}

// RegisterAlias 包装 RegisterAlias，便于注册别名规则.
func RegisterAlias(alias, rules string) {
	lazyInit()

	inst.RegisterAlias(alias, rules)
}
