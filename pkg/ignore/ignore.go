package ignore

import (
	"fmt"
	"os"

	gitignore "github.com/sabhiram/go-gitignore"
)

// Matcher 封装了排除逻辑
// 它负责判断一个恢复出来的文件是否应该跳过提取 (比如大量无关的缓存文件)
type Matcher struct {
	ignorer *gitignore.GitIgnore
}

// NewMatcher 初始化排除匹配器
// excludeFile: 可选，gitignore 语法的规则文件
// patterns: 额外的规则，和文件里的规则一起生效
func NewMatcher(excludeFile string, patterns ...string) (*Matcher, error) {
	if excludeFile == "" && len(patterns) == 0 {
		return &Matcher{}, nil
	}

	var ignorer *gitignore.GitIgnore
	var err error

	if excludeFile != "" {
		if _, errStat := os.Stat(excludeFile); errStat != nil {
			return nil, fmt.Errorf("exclude file: %w", errStat)
		}
		// 文件内容和额外规则合并编译
		ignorer, err = gitignore.CompileIgnoreFileAndLines(excludeFile, patterns...)
	} else {
		ignorer = gitignore.CompileIgnoreLines(patterns...)
	}

	if err != nil {
		return nil, err
	}

	return &Matcher{ignorer: ignorer}, nil
}

// Matches 检查对象名是否匹配排除规则
// 返回: true 表示应该跳过 (Skip), false 表示应该提取 (Keep)
func (m *Matcher) Matches(name string) bool {
	if m == nil || m.ignorer == nil {
		return false
	}
	return m.ignorer.MatchesPath(name)
}
