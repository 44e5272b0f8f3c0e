package response

import "github.com/gin-gonic/gin"

const (
	CodeOK                 = 0
	CodeBadRequest         = 40000
	CodeEmptyInput         = 40003
	CodeUnauthorized       = 40100
	CodeInvalidCredentials = 40101
	CodeTokenRevoked       = 40102
	CodeSessionNotFound    = 40401
	CodeAttachmentNotFound = 40402
	CodeResponsePending    = 40900
	CodeUploadTooLarge     = 41300
	CodeUnsupportedMedia   = 41500
	CodeDecodeFailed       = 42200
	CodeInternalServer     = 50000
	CodeGenerationFailed   = 50200
	CodeUnavailable        = 50300
)

type APIResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(200, APIResponse{
		Code:    CodeOK,
		Message: "ok",
		Data:    data,
	})
}

// Accepted answers a submission whose reply is still being generated.
func Accepted(c *gin.Context, data interface{}) {
	c.JSON(202, APIResponse{
		Code:    CodeOK,
		Message: "accepted",
		Data:    data,
	})
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
	})
}
