// Package deepcopy clones arbitrary values by walking them with reflection.
// It is used to snapshot query filters so that later mutation of the
// caller's filter cannot leak into a cache instance built from it.
package deepcopy

import (
	"reflect"
	"unsafe"
)

// Copy returns a deep copy of v.
//
// Maps, slices, arrays, pointers, interfaces and structs (including
// unexported fields) are duplicated recursively. Channels, functions and
// unsafe pointers are shared. Pointer cycles are preserved: a pointer seen
// twice is copied once.
func Copy[T any](v T) T {
	src := reflect.ValueOf(&v).Elem()
	dst := reflect.New(src.Type()).Elem()
	c := copier{seen: make(map[uintptr]reflect.Value)}
	c.copy(dst, src)
	out, _ := dst.Interface().(T) // nil interface T stays nil
	return out
}

type copier struct {
	seen map[uintptr]reflect.Value
}

func (c *copier) copy(dst, src reflect.Value) {
	switch src.Kind() {
	case reflect.Pointer:
		if src.IsNil() {
			return
		}
		if p, ok := c.seen[src.Pointer()]; ok {
			dst.Set(p)
			return
		}
		p := reflect.New(src.Type().Elem())
		c.seen[src.Pointer()] = p
		c.copy(p.Elem(), src.Elem())
		dst.Set(p)

	case reflect.Interface:
		if src.IsNil() {
			return
		}
		inner := src.Elem()
		cp := reflect.New(inner.Type()).Elem()
		c.copy(cp, inner)
		dst.Set(cp)

	case reflect.Struct:
		src = addressable(src)
		// start from a shallow copy so fields we cannot walk keep their value
		dst.Set(src)
		for i := 0; i < src.NumField(); i++ {
			c.copy(settable(dst.Field(i)), settable(src.Field(i)))
		}

	case reflect.Slice:
		if src.IsNil() {
			return
		}
		s := reflect.MakeSlice(src.Type(), src.Len(), src.Cap())
		for i := 0; i < src.Len(); i++ {
			c.copy(s.Index(i), src.Index(i))
		}
		dst.Set(s)

	case reflect.Array:
		for i := 0; i < src.Len(); i++ {
			c.copy(dst.Index(i), src.Index(i))
		}

	case reflect.Map:
		if src.IsNil() {
			return
		}
		m := reflect.MakeMapWithSize(src.Type(), src.Len())
		it := src.MapRange()
		for it.Next() {
			k := reflect.New(src.Type().Key()).Elem()
			c.copy(k, it.Key())
			val := reflect.New(src.Type().Elem()).Elem()
			c.copy(val, it.Value())
			m.SetMapIndex(k, val)
		}
		dst.Set(m)

	default:
		dst.Set(src)
	}
}

// addressable returns v itself or an addressable copy of it, so that its
// fields can later be reached through settable.
func addressable(v reflect.Value) reflect.Value {
	if v.CanAddr() {
		return v
	}
	tmp := reflect.New(v.Type()).Elem()
	tmp.Set(v)
	return tmp
}

// settable exposes unexported struct fields for reading and writing.
func settable(v reflect.Value) reflect.Value {
	if v.CanSet() || !v.CanAddr() {
		return v
	}
	return reflect.NewAt(v.Type(), unsafe.Pointer(v.UnsafeAddr())).Elem()
}
