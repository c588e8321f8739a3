package dbconn

import "context"

type FakeConn struct {
	id ID
}

func MakeFakeConn(id ID) FakeConn {
	return FakeConn{id: id}
}

func (f FakeConn) ID() ID {
	return f.id
}

func (f FakeConn) Close(ctx context.Context) error {
	return nil
}

func (f FakeConn) Clone(ctx context.Context) (Conn, error) {
	return f, nil
}

func (f FakeConn) Database() string {
	return string(f.id)
}

func (f FakeConn) ConnStr() string {
	return "fake://"
}

func (f FakeConn) Dialect() string {
	return "fake"
}

var _ Conn = FakeConn{}
