package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/loanflow/internal/validation"
	"github.com/BaSui01/loanflow/types"
)

// =============================================================================
// 🛡️ 请求校验
// =============================================================================

// ValidationObserver 接收每次校验的结果（指标上报）
type ValidationObserver interface {
	ObserveValidation(schema string, ok bool, violations int)
}

// Validator 在 handler 之前按名称校验 body、query 与 params
type Validator struct {
	registry *validation.Registry
	logger   *zap.Logger
	observer ValidationObserver
}

// NewValidator 创建校验器
func NewValidator(registry *validation.Registry, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{registry: registry, logger: logger.With(zap.String("component", "validator"))}
}

// WithObserver 设置结果观察者
func (v *Validator) WithObserver(o ValidationObserver) *Validator {
	v.observer = o
	return v
}

type validatedKey struct{}

// ValidatedData 取出校验通过后的规范化数据
func ValidatedData(ctx context.Context) (*validation.Data, bool) {
	d, ok := ctx.Value(validatedKey{}).(*validation.Data)
	return d, ok && d != nil
}

// Wrap 校验失败时返回 400 与全部字段问题，handler 不会被调用
func (v *Validator) Wrap(schemaName string, next http.HandlerFunc) http.HandlerFunc {
	schema, ok := v.registry.Get(schemaName)
	if !ok {
		// 路由装配错误，启动时即暴露
		panic(validation.ErrUnknownSchema.Error() + ": " + schemaName)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		in, apiErr := readInput(r, schema)
		if apiErr != nil {
			WriteError(w, r, apiErr, v.logger)
			return
		}

		result := schema.Validate(in)
		if v.observer != nil {
			v.observer.ObserveValidation(schemaName, result.OK(), len(result.Violations()))
		}

		if !result.OK() {
			var verr *validation.ValidationError
			if errors.As(result.Err(), &verr) {
				v.logger.Debug("request rejected",
					zap.String("schema", schemaName),
					zap.Strings("fields", verr.Fields()),
				)
				WriteValidationError(w, r, verr)
				return
			}
		}

		ctx := context.WithValue(r.Context(), validatedKey{}, result.Data())
		next(w, r.WithContext(ctx))
	}
}

// readInput 把请求拆成三个分区。字符串统一做 HTML 清洗。
func readInput(r *http.Request, schema *validation.Schema) (validation.Input, *types.Error) {
	var in validation.Input

	if schema.Section(validation.SectionBody) != nil {
		body, err := readBody(r)
		if err != nil {
			return in, err
		}
		in.Body = validation.Sanitize(body)
	}

	if schema.Section(validation.SectionQuery) != nil {
		query := make(map[string]any)
		for key, values := range r.URL.Query() {
			if len(values) > 0 {
				query[key] = validation.SanitizeString(values[0])
			}
		}
		in.Query = query
	}

	if obj := schema.Section(validation.SectionParams); obj != nil {
		params := make(map[string]any)
		for _, name := range obj.Fields() {
			if value := r.PathValue(name); value != "" {
				params[name] = value
			}
		}
		in.Params = params
	}
	return in, nil
}

func readBody(r *http.Request) (any, *types.Error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "multipart/form-data", "application/x-www-form-urlencoded":
		if err := parseForm(r, mediaType); err != nil {
			return nil, bodyError(err)
		}
		form := make(map[string]any, len(r.PostForm))
		for key, values := range r.PostForm {
			if len(values) > 0 {
				form[key] = values[0]
			}
		}
		return form, nil
	}

	if r.Body == nil {
		return nil, nil
	}
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	var body any
	if err := dec.Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, bodyError(err)
	}
	if dec.More() {
		return nil, types.BadRequest("Invalid JSON body")
	}
	return body, nil
}

func parseForm(r *http.Request, mediaType string) error {
	if mediaType == "multipart/form-data" {
		return r.ParseMultipartForm(10 << 20)
	}
	return r.ParseForm()
}

func bodyError(err error) *types.Error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
		return types.NewError(types.ErrPayloadTooBig, "Request body too large").WithCause(err)
	}
	return types.BadRequest("Invalid JSON body").WithCause(err)
}
