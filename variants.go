package bincode

import "reflect"

// Variants assigns enum tags to Go types, in registration order starting
// at 0.
type Variants interface {
	GetTag(item any) (uint32, bool)

	GetType(tag uint32) (reflect.Type, bool)

	Len() uint32

	Push(items ...any) Variants
}

type variants struct {
	types     []reflect.Type
	typeToTag map[reflect.Type]uint32
}

func NewVariants(items ...any) Variants {
	return (&variants{
		types:     make([]reflect.Type, 0, len(items)),
		typeToTag: make(map[reflect.Type]uint32, len(items)),
	}).Push(items...)
}

func (v *variants) GetTag(item any) (uint32, bool) {
	typ := reflect.TypeOf(item)
	if typ == nil {
		return 0, false
	}

	tag, ok := v.typeToTag[typ]

	return tag, ok
}

func (v *variants) GetType(tag uint32) (reflect.Type, bool) {
	if tag >= v.Len() {
		return nil, false
	}

	return v.types[tag], true
}

func (v *variants) Len() uint32 {
	return uint32(len(v.types))
}

func (v *variants) Push(items ...any) Variants {
	for _, item := range items {
		typ := reflect.TypeOf(item)

		v.typeToTag[typ] = uint32(len(v.types))
		v.types = append(v.types, typ)
	}

	return v
}

// Union is an enum whose variants are the types registered in Set. The
// tag of Value's dynamic type is written, followed by Value.
type Union struct {
	Set   Variants
	Value any
}

func (u Union) MarshalBincode(s *Serializer) error {
	if u.Set == nil {
		return Custom("union has no variant set")
	}

	tag, ok := u.Set.GetTag(u.Value)
	if !ok {
		return Customf("type %T is not a variant of this union", u.Value)
	}

	if err := s.WriteVariant(tag); err != nil {
		return err
	}

	return s.Serialize(u.Value)
}

func (u *Union) UnmarshalBincode(d *Deserializer) error {
	if u.Set == nil {
		return Custom("union has no variant set")
	}

	tag, err := d.ReadVariant()
	if err != nil {
		return err
	}

	typ, ok := u.Set.GetType(tag)
	if !ok {
		return invalidTag(uint64(tag))
	}

	item := reflect.New(typ)

	if err := d.Deserialize(item.Interface()); err != nil {
		return err
	}

	u.Value = item.Elem().Interface()

	return nil
}
