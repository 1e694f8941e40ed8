package imgx

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"

	_ "image/gif" // 注册 GIF 解码器（列表页缩略图偶见动图首帧）
	_ "image/png" // 注册 PNG 解码器（输入不一定总是 jpeg）
)

// DecodeError 表示输入字节不是可解码的图片。
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("图片解码失败：%v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsDecode 判断 err 是否为 *DecodeError。
func IsDecode(err error) bool {
	var e *DecodeError
	return errors.As(err, &e)
}

// 各档位的变换参数。
//
// - 1 档：轻度模糊（只削细节，保留轮廓）
// - 2 档：中度模糊 + 粗网格马赛克
// - 3 档：重度模糊 + 更粗的网格（信息损失最大化，但仍是同尺寸的合法图片）
type params struct {
	radius  int
	passes  int
	cellDiv int // 0 表示不做马赛克
	cellMin int
}

var levelParams = [4]params{
	1: {radius: 4, passes: 2},
	2: {radius: 8, passes: 2, cellDiv: 24, cellMin: 4},
	3: {radius: 14, passes: 3, cellDiv: 12, cellMin: 8},
}

// Redact 对图片做不可逆打码，level ∈ [0,3]。
//
// 约束：
// - 0 档是恒等变换：原始字节原样返回（逐字节相同）
// - 1~3 档：输入允许 JPEG/PNG/GIF，输出统一重编码为 JPEG（质量 85），尺寸不变
// - 全程整数运算，无随机源：相同输入 + 相同档位 → 逐字节相同的输出
// - 档位越界直接报错：打码强度是安全开关，不做隐式截断
func Redact(src []byte, level int) ([]byte, error) {
	if level < 0 || level > 3 {
		return nil, fmt.Errorf("打码档位必须在 [0,3]，实际 %d", level)
	}
	if level == 0 {
		return src, nil
	}
	if len(src) == 0 {
		return nil, &DecodeError{Err: errors.New("输入为空")}
	}

	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, &DecodeError{Err: errors.New("图片尺寸无效")}
	}

	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)

	p := levelParams[level]
	// 先模糊后马赛克：马赛克块的均值取自已经糊掉的像素，块边缘不会泄露原始细节。
	for i := 0; i < p.passes; i++ {
		boxBlur(dst, p.radius)
	}
	if p.cellDiv > 0 {
		mosaic(dst, cellSize(dst, p.cellDiv, p.cellMin))
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: 85}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// boxBlur 做一次半径 r 的盒式模糊（水平 + 垂直两个一维窗口）。
// 多次叠加可逼近高斯模糊，且保持纯整数平均。
func boxBlur(img *image.RGBA, r int) {
	if r <= 0 {
		return
	}
	blurHorizontal(img, r)
	blurVertical(img, r)
}

func blurHorizontal(img *image.RGBA, r int) {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	sum := make([][4]int, w+1)
	row := make([]uint8, w*4)

	for y := 0; y < h; y++ {
		off := y * img.Stride
		for x := 0; x < w; x++ {
			i := off + x*4
			for c := 0; c < 4; c++ {
				sum[x+1][c] = sum[x][c] + int(img.Pix[i+c])
			}
		}
		for x := 0; x < w; x++ {
			lo := x - r
			if lo < 0 {
				lo = 0
			}
			hi := x + r + 1
			if hi > w {
				hi = w
			}
			n := hi - lo
			for c := 0; c < 4; c++ {
				row[x*4+c] = uint8((sum[hi][c] - sum[lo][c] + n/2) / n)
			}
		}
		copy(img.Pix[off:off+w*4], row)
	}
}

func blurVertical(img *image.RGBA, r int) {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	sum := make([][4]int, h+1)
	col := make([]uint8, h*4)

	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			i := y*img.Stride + x*4
			for c := 0; c < 4; c++ {
				sum[y+1][c] = sum[y][c] + int(img.Pix[i+c])
			}
		}
		for y := 0; y < h; y++ {
			lo := y - r
			if lo < 0 {
				lo = 0
			}
			hi := y + r + 1
			if hi > h {
				hi = h
			}
			n := hi - lo
			for c := 0; c < 4; c++ {
				col[y*4+c] = uint8((sum[hi][c] - sum[lo][c] + n/2) / n)
			}
		}
		for y := 0; y < h; y++ {
			i := y*img.Stride + x*4
			copy(img.Pix[i:i+4], col[y*4:y*4+4])
		}
	}
}

// cellSize 由短边与档位除数决定马赛克格子边长（不小于 min）。
func cellSize(img *image.RGBA, div, min int) int {
	s := img.Bounds().Dx()
	if dy := img.Bounds().Dy(); dy < s {
		s = dy
	}
	c := s / div
	if c < min {
		c = min
	}
	return c
}

// mosaic 把图片按 cell×cell 网格逐格取均值回填，
// 等价于“粗网格下采样 + 近邻复制上采样”，产生可见的块状效果。
func mosaic(img *image.RGBA, cell int) {
	if cell <= 1 {
		return
	}
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()

	for y0 := 0; y0 < h; y0 += cell {
		y1 := y0 + cell
		if y1 > h {
			y1 = h
		}
		for x0 := 0; x0 < w; x0 += cell {
			x1 := x0 + cell
			if x1 > w {
				x1 = w
			}

			var s [4]int
			n := (x1 - x0) * (y1 - y0)
			for y := y0; y < y1; y++ {
				i := y*img.Stride + x0*4
				for x := x0; x < x1; x++ {
					for c := 0; c < 4; c++ {
						s[c] += int(img.Pix[i+c])
					}
					i += 4
				}
			}

			var avg [4]uint8
			for c := 0; c < 4; c++ {
				avg[c] = uint8((s[c] + n/2) / n)
			}
			for y := y0; y < y1; y++ {
				i := y*img.Stride + x0*4
				for x := x0; x < x1; x++ {
					copy(img.Pix[i:i+4], avg[:])
					i += 4
				}
			}
		}
	}
}
