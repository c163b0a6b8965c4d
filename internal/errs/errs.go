package errs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// 错误码，对外契约的一部分，web 层与 CLI 都直接透传
const (
	CodeMissingRequiredFields = "MISSING_REQUIRED_FIELDS"
	CodeInvalidParticipants   = "INVALID_PARTICIPANTS"
	CodeGroupNameRequired     = "GROUP_NAME_REQUIRED"
	CodeChatNotFound          = "CHAT_NOT_FOUND"
	CodeNotGroupChat          = "NOT_GROUP_CHAT"
	CodeNotAdmin              = "NOT_ADMIN"
	CodeParticipantNotFound   = "PARTICIPANT_NOT_FOUND"
	CodeUserNotFound          = "USER_NOT_FOUND"
	CodeMessageNotFound       = "MESSAGE_NOT_FOUND"
	CodeNotSender             = "NOT_SENDER"
	CodeInvalidMessageType    = "INVALID_MESSAGE_TYPE"
	CodeDuplicateValue        = "DUPLICATE_VALUE"
	CodeUnknown               = "UNKNOWN_ERROR"
)

// Error 带错误码的领域错误
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// New 创建领域错误
func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf 创建带格式化消息的领域错误
func Newf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ErrorInfo 统一的错误信封，随 {success:false} 一起返回给调用方
type ErrorInfo struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Source  string `json:"source"`
}

// From 将任意错误归一化为 ErrorInfo，未归类的错误一律落到 UNKNOWN_ERROR
func From(err error, source string) *ErrorInfo {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return &ErrorInfo{Message: de.Message, Code: de.Code, Source: source}
	}
	return &ErrorInfo{Message: err.Error(), Code: CodeUnknown, Source: source}
}

// RequireFields 校验必填字段，fields 的 key 为字段名、value 为字段值。
// 缺失时返回 MISSING_REQUIRED_FIELDS，消息中按字段名排序列出缺失项。
func RequireFields(fields map[string]string) *Error {
	var missing []string
	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return Newf(CodeMissingRequiredFields, "缺少必填字段: %s", strings.Join(missing, ", "))
}
