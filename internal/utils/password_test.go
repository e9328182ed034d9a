package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
)

// PasswordTestSuite 密码工具测试套件
type PasswordTestSuite struct {
	suite.Suite
}

// 测试哈希与验证
func (suite *PasswordTestSuite) TestHashAndVerify() {
	hash, err := HashPassword("s3cret-pass")
	suite.NoError(err)
	suite.True(strings.HasPrefix(hash, "$argon2id$"))

	ok, err := VerifyPassword("s3cret-pass", hash)
	suite.NoError(err)
	suite.True(ok)

	ok, err = VerifyPassword("wrong-pass", hash)
	suite.NoError(err)
	suite.False(ok)
}

// 测试相同密码产生不同哈希（随机盐）
func (suite *PasswordTestSuite) TestHashUnique() {
	h1, err := HashPassword("same-pass")
	suite.NoError(err)
	h2, err := HashPassword("same-pass")
	suite.NoError(err)
	suite.NotEqual(h1, h2)
}

// 测试格式非法的哈希
func (suite *PasswordTestSuite) TestVerifyMalformed() {
	_, err := VerifyPassword("pass", "not-a-hash")
	suite.Error(err)

	_, err = VerifyPassword("pass", "$bcrypt$v=19$m=1,t=1,p=1$salt$hash")
	suite.Error(err)
}

// 测试订单号生成
func (suite *PasswordTestSuite) TestGenerateOrderNo() {
	no1, err := GenerateOrderNo("LUDO")
	suite.NoError(err)
	suite.True(strings.HasPrefix(no1, "LUDO-"))

	no2, err := GenerateOrderNo("LUDO")
	suite.NoError(err)
	suite.NotEqual(no1, no2)
}

func TestPasswordTestSuite(t *testing.T) {
	suite.Run(t, new(PasswordTestSuite))
}
