package config

import "time"

type Sweep struct {
	Prefix      string        `ini:"prefix" yaml:"prefix" comment:"默认网段前缀，如 172.16.5."`
	Timeout     time.Duration `ini:"timeout" yaml:"timeout" comment:"单个探测超时，默认:300ms"`
	Workers     int           `ini:"workers" yaml:"workers" comment:"并发探测数，默认:100"`
	FirstHost   int           `ini:"firstHost" yaml:"firstHost" comment:"起始主机号，默认:1"`
	LastHost    int           `ini:"lastHost" yaml:"lastHost" comment:"结束主机号，默认:254"`
	Method      string        `ini:"method" yaml:"method" comment:"探测方式: icmp/icmp-raw/exec"`
	DNS         []string      `ini:"dns" yaml:"dns" comment:"反向解析使用的 DNS 服务器，为空则使用系统解析"`
	UnknownHost string        `ini:"unknownHost" yaml:"unknownHost" comment:"无法解析主机名时的显示名称"`
	MaxPPS      int           `ini:"maxPps" yaml:"maxPps" comment:"每秒最多发起的探测数，0 表示不限制"`
}

type Config struct {
	Version       string `yaml:"version"`
	DatabaseFile  string `ini:"databaseFile" yaml:"databaseFile"`
	ExportDataDir string `ini:"exportDataDir" yaml:"exportDataDir"`
	LogDataDir    string `ini:"logDataDir" yaml:"logDataDir"`
	Sweep         Sweep  `yaml:"sweep"`
}
