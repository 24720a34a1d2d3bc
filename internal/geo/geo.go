// Package geo 定义 IP 地理位置查询的扩展点。
// 默认实现不做任何解析，所有字段均为未知。
package geo

import "context"

// Location 地理位置，零值字段表示未知
type Location struct {
	Country   string
	City      string
	Latitude  *float64
	Longitude *float64
}

// Lookup 根据 IP 查询地理位置。实现返回错误时调用方按未知处理。
type Lookup interface {
	Lookup(ctx context.Context, ip string) (Location, error)
}

// Unknown 默认实现
type Unknown struct{}

func (Unknown) Lookup(context.Context, string) (Location, error) {
	return Location{}, nil
}

// LookupFunc 函数适配器
type LookupFunc func(ctx context.Context, ip string) (Location, error)

func (f LookupFunc) Lookup(ctx context.Context, ip string) (Location, error) {
	return f(ctx, ip)
}
