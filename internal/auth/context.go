package auth

import "context"

type subjectKey struct{}

// WithSubject 将通过认证的调用方写入请求上下文。
func WithSubject(ctx context.Context, subject Subject) context.Context {
	return context.WithValue(ctx, subjectKey{}, subject)
}

// SubjectFromContext 取出调用方；未启用认证或请求未经过中间件时返回 false。
func SubjectFromContext(ctx context.Context) (Subject, bool) {
	if ctx == nil {
		return Subject{}, false
	}
	subject, ok := ctx.Value(subjectKey{}).(Subject)
	return subject, ok
}
