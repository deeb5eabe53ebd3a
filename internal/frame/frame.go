package frame

import "encoding/binary"

const (
	// HeaderSize は長さプレフィックスとIDを合わせたヘッダ長
	HeaderSize = 4
	// MinLength は長さフィールドの最小値（IDの2バイトを必ず含む）
	MinLength = 2
)

// Message は再構築された1つのメッセージ
type Message struct {
	ID      uint16
	Payload []byte
}

// prototypeQuery は毎回のディスパッチで使い回す固定ペイロード
// example.com の A レコードを引く最小のDNSクエリ本体（ID以降の27バイト）
var prototypeQuery = []byte{
	0x01, 0x00, 0x00, 0x01, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x07, 0x65, 0x78, 0x61,
	0x6d, 0x70, 0x6c, 0x65, 0x03, 0x63, 0x6f, 0x6d,
	0x00, 0x00, 0x01, 0x00, 0x01,
}

// PrototypeQuery は固定プロトタイプペイロードのコピーを返す
func PrototypeQuery() []byte {
	p := make([]byte, len(prototypeQuery))
	copy(p, prototypeQuery)
	return p
}

// Append はフレームを dst に追記して返す
// 長さフィールドは自身を除く後続バイト数（ID 2バイト + ペイロード）
func Append(dst []byte, id uint16, payload []byte) []byte {
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(payload)+2))
	dst = binary.BigEndian.AppendUint16(dst, id)
	return append(dst, payload...)
}

// Encode は1フレーム分の新しいバイト列を返す
func Encode(id uint16, payload []byte) []byte {
	return Append(make([]byte, 0, HeaderSize+len(payload)), id, payload)
}

// Reassembler は1コネクション分の受信バッファから完全なメッセージを取り出す
// 状態は未消費の受信バイト列のみ
type Reassembler struct {
	buf []byte
}

// NewReassembler は新しいReassemblerを作成する
func NewReassembler() *Reassembler {
	return &Reassembler{}
}

// Feed は受信したバイト列を取り込み、完全なメッセージごとに emit を呼ぶ
// 1回のreadに複数メッセージが含まれることも、メッセージが途中で切れる
// こともある。末尾の不完全なバイト列は次回のFeedまで保持される。
//
// emit に渡す Payload は内部バッファを指すため、コールバックの外で保持する
// 場合は呼び出し側がコピーすること。
func (r *Reassembler) Feed(p []byte, emit func(Message)) {
	r.buf = append(r.buf, p...)

	off := 0
	for {
		rem := r.buf[off:]
		if len(rem) < HeaderSize {
			break
		}
		length := binary.BigEndian.Uint16(rem[0:2])
		id := binary.BigEndian.Uint16(rem[2:4])
		total := int(length) + 2
		if len(rem) < total {
			// メッセージ未完。次のreadを待つ
			break
		}
		var payload []byte
		if total > HeaderSize {
			payload = rem[HeaderSize:total]
		}
		emit(Message{ID: id, Payload: payload})
		off += total
	}

	if off > 0 {
		n := copy(r.buf, r.buf[off:])
		r.buf = r.buf[:n]
	}
}

// Pending は未消費のバッファ長を返す
func (r *Reassembler) Pending() int {
	return len(r.buf)
}
