package smart

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var (
	zeroWidth  = regexp.MustCompile(`[\x{2000}-\x{200D}\x{202F}]`)
	crdr       = regexp.MustCompile(`(?i)CR|DR`)
	parenNeg   = regexp.MustCompile(`^\((.*)\)$`)
	nonNumeric = regexp.MustCompile(`[^\d.\-]`)
	currency   = strings.NewReplacer("₹", "", ",", "")
)

// 渲染后会在元素之间产生空白的标签
var breakingTags = map[string]bool{
	"td": true, "th": true, "tr": true, "table": true, "tbody": true, "thead": true,
	"br": true, "div": true, "p": true, "li": true,
}

// innerText 近似浏览器的 innerText:单元格与块级元素之间插入空格,跳过脚本
func innerText(sel *goquery.Selection) string {
	var b strings.Builder
	for _, n := range sel.Nodes {
		writeText(&b, n)
	}
	return b.String()
}

func writeText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		if n.Data == "script" || n.Data == "style" {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}
	if n.Type == html.ElementNode && breakingTags[n.Data] {
		b.WriteByte(' ')
	}
}

// clean 把不换行空格换成普通空格并去掉首尾空白
func clean(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\u00a0", " "))
}

// collapse 在 clean 的基础上把连续空白合并成一个空格
func collapse(s string) string {
	return strings.Join(strings.Fields(clean(s)), " ")
}

func cellText(sel *goquery.Selection) string {
	return collapse(innerText(sel))
}

// ParseAmount 解析页面上的金额,去掉货币符号、千分位与 CR/DR 后缀,括号表示负数;无法解析时返回 0
func ParseAmount(s string) float64 {
	t := clean(s)
	t = zeroWidth.ReplaceAllString(t, "")
	t = currency.Replace(t)
	t = crdr.ReplaceAllString(t, "")
	t = parenNeg.ReplaceAllString(t, "-$1")
	t = nonNumeric.ReplaceAllString(t, "")
	v, err := strconv.ParseFloat(t, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0
	}
	return v
}
