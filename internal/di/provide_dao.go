package di

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/meridian-data/etl-deployer/internal/dao/resourcedao"
)

func ProvideResourceDAO(env string, client *dynamodb.Client) *resourcedao.DAO {
	return resourcedao.New(client, resourcedao.TableName(env))
}
