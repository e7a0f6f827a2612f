package conversation

var testOps = OpcodeMap{
	AskTop: 0xF7,
	Get:    0xFB,
	Key:    0xEF,
	Res:    0xF6,
	EndRes: 0xEE,
	End:    0xB6,
}

const (
	opKey    = byte(0xEF)
	opRes    = byte(0xF6)
	opEndRes = byte(0xEE)
	opAskTop = byte(0xF7)
	opEnd    = byte(0xB6)
)

// build 拼接字节与字符串片段为脚本字节。
func build(parts ...any) []byte {
	var out []byte
	for _, p := range parts {
		switch v := p.(type) {
		case byte:
			out = append(out, v)
		case string:
			out = append(out, v...)
		case []byte:
			out = append(out, v...)
		}
	}
	return out
}

// jobNameScript: KEY "job" RES "Hi" ENDRES KEY "name" RES "Avatar" ENDRES
func jobNameScript() []byte {
	return build(opKey, "job", opRes, "Hi", opEndRes, opKey, "name", opRes, "Avatar", opEndRes)
}

// textDecoder 返回默认的 ASCII TextDecoder。
func textDecoder() *TextDecoder {
	return &TextDecoder{Ops: testOps}
}
