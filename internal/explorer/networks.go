package explorer

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultNetworkName = "neox-testnet"
	defaultSymbol      = "GAS"
	defaultDecimals    = 18
)

// NetworkDefinitions 对应 networks.yaml 的结构。
type NetworkDefinitions struct {
	Default  string                       `yaml:"default"`
	Networks map[string]NetworkDefinition `yaml:"networks"`
}

// NetworkDefinition 描述单个浏览器端点。
type NetworkDefinition struct {
	APIURL      string `yaml:"api_url"`
	Symbol      string `yaml:"symbol"`
	Decimals    int    `yaml:"decimals"`
	Description string `yaml:"description"`
}

// LoadNetworkDefinitions 解析网络定义文件，路径为空时返回空定义。
func LoadNetworkDefinitions(path string) (NetworkDefinitions, error) {
	if strings.TrimSpace(path) == "" {
		return NetworkDefinitions{Networks: map[string]NetworkDefinition{}}, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return NetworkDefinitions{}, fmt.Errorf("读取网络配置失败: %w", err)
	}

	var defs NetworkDefinitions
	if err := yaml.Unmarshal(content, &defs); err != nil {
		return NetworkDefinitions{}, fmt.Errorf("解析网络配置失败: %w", err)
	}
	if defs.Networks == nil {
		defs.Networks = map[string]NetworkDefinition{}
	}
	return defs, nil
}

// Network 是注册表中的一个网络及其客户端。
type Network struct {
	Name        string
	Symbol      string
	Decimals    int
	Description string
	Client      *Client
}

// RegistryConfig 描述注册表的来源。
type RegistryConfig struct {
	NetworksFile   string
	APIURL         string
	DefaultNetwork string
	Timeout        time.Duration
	HTTPClient     *http.Client
}

// Registry 按名称管理多个浏览器网络。
type Registry struct {
	defaultNetwork string
	networks       map[string]*Network
}

// NewRegistry 加载网络定义并为每个网络创建客户端。
// 未定义任何网络时使用 APIURL 注册一个默认网络。
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	defs, err := LoadNetworkDefinitions(cfg.NetworksFile)
	if err != nil {
		return nil, err
	}

	networks := make(map[string]*Network)
	for name, def := range defs.Networks {
		if strings.TrimSpace(def.APIURL) == "" {
			return nil, fmt.Errorf("网络 %s 未配置 api_url", name)
		}
		networks[name] = newNetwork(name, def, cfg)
	}

	if len(networks) == 0 {
		networks[defaultNetworkName] = newNetwork(defaultNetworkName, NetworkDefinition{
			APIURL:      cfg.APIURL,
			Description: "Neo X testnet",
		}, cfg)
	}

	defaultNetwork := cfg.DefaultNetwork
	if defaultNetwork == "" {
		defaultNetwork = defs.Default
	}
	if defaultNetwork == "" {
		names := sortedNames(networks)
		defaultNetwork = names[0]
	}
	if _, ok := networks[defaultNetwork]; !ok {
		return nil, fmt.Errorf("默认网络 %s 未在配置中找到", defaultNetwork)
	}

	return &Registry{defaultNetwork: defaultNetwork, networks: networks}, nil
}

func newNetwork(name string, def NetworkDefinition, cfg RegistryConfig) *Network {
	symbol := strings.TrimSpace(def.Symbol)
	if symbol == "" {
		symbol = defaultSymbol
	}
	decimals := def.Decimals
	if decimals <= 0 {
		decimals = defaultDecimals
	}
	return &Network{
		Name:        name,
		Symbol:      symbol,
		Decimals:    decimals,
		Description: def.Description,
		Client: NewClient(Config{
			APIURL:     def.APIURL,
			Timeout:    cfg.Timeout,
			HTTPClient: cfg.HTTPClient,
		}),
	}
}

// Default 返回默认网络。
func (r *Registry) Default() (*Network, error) {
	if r == nil {
		return nil, errors.New("未初始化的网络注册表")
	}
	network, ok := r.networks[r.defaultNetwork]
	if !ok {
		return nil, fmt.Errorf("默认网络 %s 未在注册表中", r.defaultNetwork)
	}
	return network, nil
}

// Network 按名称查找网络，名称为空时返回默认网络。
func (r *Registry) Network(name string) (*Network, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return r.Default()
	}
	if r == nil {
		return nil, errors.New("未初始化的网络注册表")
	}
	network, ok := r.networks[name]
	if !ok {
		return nil, fmt.Errorf("unknown network %s", name)
	}
	return network, nil
}

// Networks 返回所有已注册的网络名称。
func (r *Registry) Networks() []string {
	if r == nil {
		return nil
	}
	return sortedNames(r.networks)
}

func sortedNames(networks map[string]*Network) []string {
	names := make([]string, 0, len(networks))
	for name := range networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
