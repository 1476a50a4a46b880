// Package main 启动 CareVault 病历服务.
package main

import (
	"os"

	"github.com/yeisme/carevault/pkg/cmd"
)

//	@title			CareVault API
//	@version		1.0
//	@description	CareVault 病历服务：文档文本提取、AES-256-CBC 加密存储与接收核对。

//	@license.name	MIT
//	@license.url	https://opensource.org/license/mit/

//	@contact.name	yeisme

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
