// Command policytable provisions the DynamoDB policy table: a single string
// hash key named "id" with pay-per-request billing. Table creation is an
// out-of-band administrative action, kept separate from the policy service.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	adapter "github.com/bcnelson/casbin-dynamodb-adapter"
)

func main() {
	var (
		table    = flag.String("table", "casbin_policies", "policy table name")
		region   = flag.String("region", "", "AWS region (defaults to environment)")
		endpoint = flag.String("endpoint", "", "DynamoDB endpoint override (for DynamoDB Local)")
		recreate = flag.Bool("recreate", false, "delete the table first if it exists")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var opts []func(*awsconfig.LoadOptions) error
	if *region != "" {
		opts = append(opts, awsconfig.WithRegion(*region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		log.Fatalf("Failed to load AWS configuration: %v", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if *endpoint != "" {
			o.BaseEndpoint = aws.String(*endpoint)
		}
	})

	if *recreate {
		log.Printf("Deleting table %s...", *table)
		if err := adapter.DeleteTable(ctx, client, *table); err != nil {
			log.Fatalf("Failed to delete table: %v", err)
		}
	}

	log.Printf("Creating table %s...", *table)
	if err := adapter.EnsureTable(ctx, client, *table); err != nil {
		log.Fatalf("Failed to create table: %v", err)
	}

	log.Printf("Table %s is ready", *table)
}
