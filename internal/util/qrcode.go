package util

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/png"
	"strings"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/shopspring/decimal"
	qrgen "github.com/skip2/go-qrcode"
)

// BuildPaymentURI 构建支付URI (二维码内容)
// TRC20: tron:{address}?amount={amount}
// ERC20: ethereum:{address}?value={amount}
// 其他网络退化为裸地址
func BuildPaymentURI(network, address string, amount decimal.Decimal) string {
	switch strings.ToLower(network) {
	case "trc20":
		return fmt.Sprintf("tron:%s?amount=%s", address, amount.String())
	case "erc20":
		return fmt.Sprintf("ethereum:%s?value=%s", address, amount.String())
	default:
		return address
	}
}

// GenerateQRCode 生成二维码图片，返回base64编码的PNG图片
func GenerateQRCode(content string, size int) (string, error) {
	png, err := qrgen.Encode(content, qrgen.Medium, size)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(png), nil
}

// DecodeQRCode 从base64图片数据解析二维码内容
func DecodeQRCode(base64Data string) (string, error) {
	// 去除data:image/xxx;base64,前缀
	if idx := strings.Index(base64Data, ","); idx != -1 {
		base64Data = base64Data[idx+1:]
	}

	imgData, err := base64.StdEncoding.DecodeString(base64Data)
	if err != nil {
		return "", err
	}

	img, _, err := image.Decode(bytes.NewReader(imgData))
	if err != nil {
		return "", err
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", err
	}

	reader := qrcode.NewQRCodeReader()
	result, err := reader.Decode(bmp, nil)
	if err != nil {
		return "", err
	}

	return result.GetText(), nil
}
