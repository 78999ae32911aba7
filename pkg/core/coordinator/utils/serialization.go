// 序列化与编码工具函数
// 提供环元素/份额与字节流、Base64字符串之间的转换，便于网络传输和存储
package utils

import (
	"bytes"
	"encoding/base64"
	"encoding/gob"
)

// EncodeShare 将结构体（如环元素、份额等）序列化为字节流
func EncodeShare(share interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(share); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeShare 将字节流反序列化为结构体（share为指针）
func DecodeShare(data []byte, share interface{}) error {
	buf := bytes.NewBuffer(data)
	dec := gob.NewDecoder(buf)
	return dec.Decode(share)
}

// EncodeToBase64 将字节流编码为Base64字符串，便于网络传输
func EncodeToBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeFromBase64 将Base64字符串解码为字节流
func DecodeFromBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

// EncodeShareBase64 序列化并Base64编码，一步到位
func EncodeShareBase64(share interface{}) (string, error) {
	data, err := EncodeShare(share)
	if err != nil {
		return "", err
	}
	return EncodeToBase64(data), nil
}

// DecodeShareBase64 Base64解码并反序列化（share为指针）
func DecodeShareBase64(s string, share interface{}) error {
	data, err := DecodeFromBase64(s)
	if err != nil {
		return err
	}
	return DecodeShare(data, share)
}
